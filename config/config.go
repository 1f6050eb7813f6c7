// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"go.aimuz.me/dictate/stt"
)

const (
	appName        = "dictate"
	configFileName = "config.json"
	envFileName    = ".env"
)

// Postfix values for InsertConfig.Postfix.
const (
	PostfixNone    = "none"
	PostfixSpace   = "space"
	PostfixNewline = "newline"
)

// Config represents the application configuration.
type Config struct {
	Azure         AzureConfig         `json:"azure"`
	OpenAI        OpenAIConfig        `json:"openai"`
	Transcription TranscriptionConfig `json:"transcription"`
	Hotkey        HotkeyConfig        `json:"hotkey"`
	Thresholds    ThresholdsConfig    `json:"thresholds"`
	Recording     RecordingConfig     `json:"recording"`
	Insert        InsertConfig        `json:"insert"`
	Sound         SoundConfig         `json:"sound"`
	History       HistoryConfig       `json:"history"`
}

type AzureConfig struct {
	Endpoint   string `json:"endpoint"`
	Deployment string `json:"deployment"`
	APIVersion string `json:"apiVersion"`
	APIKey     string `json:"apiKey"`
}

type OpenAIConfig struct {
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`
	APIKey  string `json:"apiKey"`
}

type TranscriptionConfig struct {
	// Provider is "azure" or "openai".
	Provider       string `json:"provider"`
	Prompt         string `json:"prompt"`
	Language       string `json:"language"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// HotkeyConfig holds one trigger spec per platform, e.g. "Ctrl" or "Win+Shift+D".
type HotkeyConfig struct {
	Windows string `json:"windows"`
	MacOS   string `json:"macos"`
	Linux   string `json:"linux"`
}

type ThresholdsConfig struct {
	HoldMs        int `json:"holdMs"`
	DoubleClickMs int `json:"doubleClickMs"`
}

type RecordingConfig struct {
	MaxSeconds int `json:"maxSeconds"`
}

type InsertConfig struct {
	RestoreClipboard bool   `json:"restoreClipboard"`
	Postfix          string `json:"postfix"`
}

type SoundConfig struct {
	Enabled bool `json:"enabled"`
}

type HistoryConfig struct {
	Enabled        bool `json:"enabled"`
	RetentionHours int  `json:"retentionHours"`
	MaxEntries     int  `json:"maxEntries"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Azure: AzureConfig{APIVersion: stt.DefaultAzureAPIVersion},
		Transcription: TranscriptionConfig{
			Provider:       stt.ProviderAzure,
			Prompt:         stt.DefaultPrompt,
			TimeoutSeconds: int(stt.DefaultTimeout / time.Second),
		},
		Hotkey:     HotkeyConfig{Windows: "Ctrl", MacOS: "Fn", Linux: "Ctrl"},
		Thresholds: ThresholdsConfig{HoldMs: 180, DoubleClickMs: 300},
		Recording:  RecordingConfig{MaxSeconds: 120},
		Insert:     InsertConfig{RestoreClipboard: true, Postfix: PostfixNone},
		Sound:      SoundConfig{Enabled: true},
		History:    HistoryConfig{Enabled: true, RetentionHours: 72, MaxEntries: 50},
	}
}

// HotkeyFor returns the trigger spec for goos.
func (c Config) HotkeyFor(goos string) string {
	switch goos {
	case "windows":
		return c.Hotkey.Windows
	case "darwin":
		return c.Hotkey.MacOS
	default:
		return c.Hotkey.Linux
	}
}

// HasAPIKey reports whether the active provider has a non-blank key.
func (c Config) HasAPIKey() bool {
	if strings.EqualFold(strings.TrimSpace(c.Transcription.Provider), stt.ProviderOpenAI) {
		return strings.TrimSpace(c.OpenAI.APIKey) != ""
	}
	return strings.TrimSpace(c.Azure.APIKey) != ""
}

// STT returns the transcription client settings.
func (c Config) STT() stt.Config {
	return stt.Config{
		Provider: c.Transcription.Provider,
		Azure: stt.AzureConfig{
			Endpoint:   c.Azure.Endpoint,
			Deployment: c.Azure.Deployment,
			APIVersion: c.Azure.APIVersion,
			APIKey:     c.Azure.APIKey,
		},
		OpenAI: stt.OpenAIConfig{
			BaseURL: c.OpenAI.BaseURL,
			Model:   c.OpenAI.Model,
			APIKey:  c.OpenAI.APIKey,
		},
		Prompt:   c.Transcription.Prompt,
		Language: c.Transcription.Language,
		Timeout:  time.Duration(c.Transcription.TimeoutSeconds) * time.Second,
	}
}

// MaxDuration returns the recording length limit.
func (c Config) MaxDuration() time.Duration {
	return time.Duration(c.Recording.MaxSeconds) * time.Second
}

// Suffix returns the text appended to every transcript.
func (c InsertConfig) Suffix() string {
	switch c.Postfix {
	case PostfixSpace:
		return " "
	case PostfixNewline:
		return "\n"
	default:
		return ""
	}
}

// normalize replaces unusable values with defaults.
func (c *Config) normalize() {
	def := Default()
	if c.Thresholds.HoldMs <= 0 {
		c.Thresholds.HoldMs = def.Thresholds.HoldMs
	}
	if c.Thresholds.DoubleClickMs <= 0 {
		c.Thresholds.DoubleClickMs = def.Thresholds.DoubleClickMs
	}
	if c.Recording.MaxSeconds <= 0 {
		c.Recording.MaxSeconds = def.Recording.MaxSeconds
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = def.Transcription.TimeoutSeconds
	}
	if strings.TrimSpace(c.Transcription.Provider) == "" {
		c.Transcription.Provider = def.Transcription.Provider
	}
	switch c.Insert.Postfix {
	case PostfixNone, PostfixSpace, PostfixNewline:
	default:
		c.Insert.Postfix = PostfixNone
	}
	if c.History.RetentionHours <= 0 {
		c.History.RetentionHours = def.History.RetentionHours
	}
	if c.History.MaxEntries <= 0 {
		c.History.MaxEntries = def.History.MaxEntries
	}
}

// envOverrides are credentials that may come from the environment or a
// .env file next to config.json. Non-empty values win over the file.
type envOverrides struct {
	AzureAPIKey     string `env:"AZURE_OPENAI_API_KEY"`
	AzureEndpoint   string `env:"AZURE_OPENAI_ENDPOINT"`
	AzureDeployment string `env:"AZURE_OPENAI_DEPLOYMENT"`
	AzureAPIVersion string `env:"AZURE_OPENAI_API_VERSION"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
}

func (o envOverrides) apply(c *Config) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.Azure.APIKey, o.AzureAPIKey)
	set(&c.Azure.Endpoint, o.AzureEndpoint)
	set(&c.Azure.Deployment, o.AzureDeployment)
	set(&c.Azure.APIVersion, o.AzureAPIVersion)
	set(&c.OpenAI.APIKey, o.OpenAIAPIKey)
}

// Store reads and writes config.json in one directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultStore returns a Store in the user config directory.
func DefaultStore() (*Store, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("get user config dir: %w", err)
	}
	return NewStore(filepath.Join(dir, appName)), nil
}

// Dir returns the directory holding config.json.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the path of config.json.
func (s *Store) Path() string {
	return filepath.Join(s.dir, configFileName)
}

// LoadFile reads config.json without environment overrides. A missing file
// yields Default; fields missing from the file keep their defaults.
func (s *Store) LoadFile() (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config %s: %w", s.Path(), err)
	}
	cfg.normalize()
	return cfg, nil
}

// Load reads config.json and applies environment overrides.
func (s *Store) Load() (Config, error) {
	cfg, err := s.LoadFile()
	if err != nil {
		return Config{}, err
	}

	environ := map[string]string{}
	envPath := filepath.Join(s.dir, envFileName)
	if _, err := os.Stat(envPath); err == nil {
		fileEnv, err := godotenv.Read(envPath)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
		maps.Copy(environ, fileEnv)
	}
	// Non-empty process environment wins over the .env file.
	for k, v := range env.ToMap(os.Environ()) {
		if v != "" {
			environ[k] = v
		}
	}

	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	o.apply(&cfg)
	return cfg, nil
}

// Save writes cfg atomically.
func (s *Store) Save(cfg Config) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, configFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
