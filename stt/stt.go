// Package stt sends finalized recordings to a cloud transcription service.
package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/net/http2"
)

const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"

	// DefaultPrompt biases recognition for mixed Chinese and English dictation.
	DefaultPrompt = "Use Simplified Chinese for Chinese words; keep English words as-is; preserve punctuation and code."

	DefaultAzureAPIVersion = "2025-03-01-preview"
	DefaultOpenAIModel     = "whisper-1"
	DefaultTimeout         = 60 * time.Second

	uploadName = "recording.wav"
	uploadType = "audio/wav"
)

var (
	// ErrMissingCredentials is returned when the active provider has no API key.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrEmptyField is returned when a required endpoint field is blank.
	ErrEmptyField = errors.New("empty field")
)

// Transcriber converts a WAV file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// AzureConfig addresses an Azure OpenAI transcription deployment.
type AzureConfig struct {
	Endpoint   string
	Deployment string
	APIVersion string
	APIKey     string
}

// OpenAIConfig addresses the OpenAI API or a compatible server.
type OpenAIConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	Azure    AzureConfig
	OpenAI   OpenAIConfig

	// Prompt defaults to DefaultPrompt. Language is an ISO-639-1 hint; empty
	// or "auto" lets the service detect it.
	Prompt   string
	Language string
	Timeout  time.Duration

	// HTTPClient overrides the default HTTP/2 client.
	HTTPClient *http.Client
}

// StatusError is a non-success response from the service.
type StatusError struct {
	StatusCode int
	Body       string
	err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcription failed (%d): %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.err
}

// New validates cfg and returns the client for its provider. Nothing is
// sent until Transcribe.
func New(cfg Config) (Transcriber, error) {
	var (
		c   *client
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderAzure:
		c, err = newAzure(cfg)
	case ProviderOpenAI:
		c, err = newOpenAI(cfg)
	default:
		err = fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// client is shared by both providers; they differ only in request options.
type client struct {
	oa       openai.Client
	model    string
	prompt   string
	language string
}

func newClient(cfg Config, model string, opts ...option.RequestOption) *client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = defaultHTTPClient()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	prompt := cfg.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}

	base := []option.RequestOption{
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	return &client{
		oa:       openai.NewClient(append(base, opts...)...),
		model:    model,
		prompt:   prompt,
		language: strings.TrimSpace(cfg.Language),
	}
}

func (c *client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:   openai.File(bytes.NewReader(wav), uploadName, uploadType),
		Model:  openai.AudioModel(c.model),
		Prompt: openai.String(c.prompt),
	}
	if c.language != "" && c.language != "auto" {
		params.Language = openai.String(c.language)
	}

	resp, err := c.oa.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, Body: errorBody(apiErr), err: err}
		}
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	return resp.Text, nil
}

func errorBody(e *openai.Error) string {
	if raw := strings.TrimSpace(e.RawJSON()); raw != "" {
		return raw
	}
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

func defaultHTTPClient() *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	// Falls back to HTTP/1.1 when the transport cannot be upgraded.
	_ = http2.ConfigureTransport(tr)
	return &http.Client{Transport: tr}
}

// fieldError names the blank field and matches its sentinel with errors.Is.
type fieldError struct {
	msg      string
	sentinel error
}

func (e *fieldError) Error() string { return e.msg }
func (e *fieldError) Unwrap() error { return e.sentinel }

func required(provider, name, value string, sentinel error) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", &fieldError{msg: provider + " " + name + " is empty", sentinel: sentinel}
	}
	return v, nil
}
