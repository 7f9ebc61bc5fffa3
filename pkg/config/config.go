// Package config loads the assistant's configuration from YAML with
// environment variable fallbacks for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/session"
)

// Config represents the application configuration
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Store    session.Config `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`

	// InferenceTimeout bounds each model call.
	InferenceTimeout time.Duration `yaml:"inference_timeout"`

	// SessionMaxIdle is how long an untouched session stays resident
	// in memory before the eviction sweep drops it.
	SessionMaxIdle time.Duration `yaml:"session_max_idle"`
}

// ProviderConfig selects and configures the LLM provider.
type ProviderConfig struct {
	// Name is one of "workersai", "openai", "gemini", or "bedrock".
	Name string `yaml:"name"`

	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// APIKey and AccountID fall back to provider-specific environment
	// variables when empty.
	APIKey    string `yaml:"api_key"`
	AccountID string `yaml:"account_id"`

	// BaseURL overrides the provider's API endpoint (gateways, tests).
	BaseURL string `yaml:"base_url"`

	// Region is used by the bedrock provider.
	Region string `yaml:"region"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsPort int    `yaml:"metrics_port"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds request rates. Zero requests-per-second
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:        "workersai",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Store: session.DefaultConfig(),
		Server: ServerConfig{
			Addr:        ":8080",
			MetricsPort: 9090,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				Burst:             20,
			},
		},
		InferenceTimeout: 60 * time.Second,
		SessionMaxIdle:   30 * time.Minute,
	}
}

// Load reads configuration from a YAML file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills credentials from the environment when the file left
// them empty.
func (c *Config) applyEnv() {
	if c.Provider.APIKey == "" {
		switch c.Provider.Name {
		case "workersai":
			c.Provider.APIKey = os.Getenv("CLOUDFLARE_API_TOKEN")
		case "openai":
			c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			c.Provider.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if c.Provider.AccountID == "" {
		c.Provider.AccountID = os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	}
	if addr := os.Getenv("ASSISTANT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Provider.Name == "" {
		return fmt.Errorf("provider.name is required")
	}
	switch c.Store.Backend {
	case "", "file", "redis", "firestore":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.InferenceTimeout < 0 {
		return fmt.Errorf("inference_timeout cannot be negative")
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second cannot be negative")
	}
	return nil
}

// ProviderOptions returns the provider factory configuration map.
func (c *Config) ProviderOptions() map[string]any {
	opts := map[string]any{}
	if c.Provider.APIKey != "" {
		opts["api_key"] = c.Provider.APIKey
		opts["api_token"] = c.Provider.APIKey
	}
	if c.Provider.AccountID != "" {
		opts["account_id"] = c.Provider.AccountID
	}
	if c.Provider.BaseURL != "" {
		opts["base_url"] = c.Provider.BaseURL
	}
	if c.Provider.Region != "" {
		opts["region"] = c.Provider.Region
	}
	return opts
}
