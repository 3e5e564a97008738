// Package config loads the agent configuration from YAML.
//
// String values of the form "$VAR" or "${VAR}" are expanded from the
// environment after any .env file next to the config (or in the working
// directory) has been loaded.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

const (
	DefaultChatModel   = "grok-3-mini"
	DefaultTemperature = 0.0
	DefaultTopP        = 1.0
	DefaultMaxTokens   = 2000
	DefaultRecent      = 20

	DefaultRequestTimeout  = 10 * time.Second
	DefaultResponseTimeout = 2 * time.Minute

	TransportREST      = "rest"
	TransportWebSocket = "websocket"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the agent configuration.
type Config struct {
	APIKey      string   `yaml:"api_key" json:"api_key"`
	APIEndpoint string   `yaml:"api_endpoint" json:"api_endpoint"`
	ChatModel   string   `yaml:"chat_model" json:"chat_model"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
	MaxTokens   int      `yaml:"max_tokens" json:"max_tokens"`

	// Prompt holds user instructions appended to the default prompt.
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	// LLMHassAPI enables tools on every turn instead of the directive
	// pipeline. Legacy configs carry a list such as ["assist"].
	LLMHassAPI Switch `yaml:"llm_hass_api" json:"llm_hass_api"`

	HomeAssistant HomeAssistant `yaml:"home_assistant" json:"home_assistant"`
	Timeouts      Timeouts      `yaml:"timeouts" json:"timeouts"`
	History       History       `yaml:"history" json:"history"`

	path string
}

type HomeAssistant struct {
	URL       string `yaml:"url" json:"url"`
	Token     string `yaml:"token" json:"token"`
	Transport string `yaml:"transport" json:"transport"`
}

type Timeouts struct {
	LocalDispatch Duration `yaml:"local_dispatch" json:"local_dispatch"`
	Fallback      Duration `yaml:"fallback" json:"fallback"`

	// Request bounds connecting to the model endpoint and waiting for the
	// response headers.
	Request Duration `yaml:"request" json:"request"`
	// Response bounds a whole model call, streamed body included. Zero
	// means no limit.
	Response Duration `yaml:"response" json:"response"`
}

type History struct {
	// Dir is the history database directory. Empty keeps history in memory.
	Dir    string `yaml:"dir,omitempty" json:"dir,omitempty"`
	Recent int    `yaml:"recent" json:"recent"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	temp, topP := DefaultTemperature, DefaultTopP
	return &Config{
		APIEndpoint: llm.DefaultBaseURL,
		ChatModel:   DefaultChatModel,
		Temperature: &temp,
		TopP:        &topP,
		MaxTokens:   DefaultMaxTokens,
		HomeAssistant: HomeAssistant{
			Transport: TransportREST,
		},
		Timeouts: Timeouts{
			LocalDispatch: Duration(10 * time.Second),
			Fallback:      Duration(30 * time.Second),
			Request:       Duration(DefaultRequestTimeout),
			Response:      Duration(DefaultResponseTimeout),
		},
		History: History{Recent: DefaultRecent},
	}
}

// Load reads the config at path on top of Default. A missing file yields the
// defaults with environment expansion applied.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	cfg := Default()
	cfg.path = path
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.expand()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.expand()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) {
	seen := map[string]bool{}
	for _, p := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err == nil {
			_ = godotenv.Load(abs)
		}
	}
}

func (c *Config) expand() {
	for _, p := range []*string{
		&c.APIKey,
		&c.APIEndpoint,
		&c.ChatModel,
		&c.HomeAssistant.URL,
		&c.HomeAssistant.Token,
		&c.History.Dir,
	} {
		*p = expandEnv(*p)
	}
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	return os.ExpandEnv(s)
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2):
		return fmt.Errorf("%w: temperature %v out of range [0, 2]", ErrInvalid, *c.Temperature)
	case c.TopP != nil && (*c.TopP < 0 || *c.TopP > 1):
		return fmt.Errorf("%w: top_p %v out of range [0, 1]", ErrInvalid, *c.TopP)
	case c.MaxTokens < 0:
		return fmt.Errorf("%w: max_tokens must not be negative", ErrInvalid)
	case c.History.Recent < 0:
		return fmt.Errorf("%w: history.recent must not be negative", ErrInvalid)
	case c.Timeouts.LocalDispatch < 0 || c.Timeouts.Fallback < 0 || c.Timeouts.Request < 0 || c.Timeouts.Response < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalid)
	}
	switch c.HomeAssistant.Transport {
	case "", TransportREST, TransportWebSocket:
	default:
		return fmt.Errorf("%w: home_assistant.transport %q, want rest or websocket", ErrInvalid, c.HomeAssistant.Transport)
	}
	for name, raw := range map[string]string{"api_endpoint": c.APIEndpoint, "home_assistant.url": c.HomeAssistant.URL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", ErrInvalid, name, raw)
		}
	}
	return nil
}

// RequireAPIKey fails when no model API key is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: api_key is required", ErrInvalid)
	}
	return nil
}

// ModelParams returns the sampling parameters for model requests.
func (c *Config) ModelParams() *llm.ModelParams {
	return &llm.ModelParams{
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
	}
}

// Masked returns a copy safe for display with secrets redacted.
func (c *Config) Masked() *Config {
	m := *c
	m.APIKey = MaskSecret(c.APIKey)
	m.HomeAssistant.Token = MaskSecret(c.HomeAssistant.Token)
	return &m
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
