package stt

import (
	"strings"

	"github.com/openai/openai-go/v3/option"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/"

func newOpenAI(cfg Config) (*client, error) {
	o := cfg.OpenAI
	key, err := required("OpenAI", "apiKey", o.APIKey, ErrMissingCredentials)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimSpace(o.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	model := strings.TrimSpace(o.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	return newClient(cfg, model,
		option.WithBaseURL(baseURL),
		option.WithAPIKey(key),
	), nil
}
