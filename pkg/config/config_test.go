package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.Name != "workersai" {
		t.Errorf("expected default provider workersai, got %q", cfg.Provider.Name)
	}
	if cfg.Store.Backend != "file" {
		t.Errorf("expected default file backend, got %q", cfg.Store.Backend)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %q", cfg.Server.Addr)
	}
	if cfg.InferenceTimeout != 60*time.Second {
		t.Errorf("expected 60s inference timeout, got %v", cfg.InferenceTimeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: openai
  model: gpt-4o-mini
  max_tokens: 512
store:
  backend: redis
  redis:
    addr: localhost:6380
server:
  addr: ":9999"
  rate_limit:
    requests_per_second: 5
inference_timeout: 30s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.Name != "openai" {
		t.Errorf("expected provider openai, got %q", cfg.Provider.Name)
	}
	if cfg.Provider.MaxTokens != 512 {
		t.Errorf("expected max_tokens 512, got %d", cfg.Provider.MaxTokens)
	}
	if cfg.Store.Backend != "redis" {
		t.Errorf("expected redis backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.Redis.Addr != "localhost:6380" {
		t.Errorf("expected redis addr localhost:6380, got %q", cfg.Store.Redis.Addr)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected addr :9999, got %q", cfg.Server.Addr)
	}
	if cfg.InferenceTimeout != 30*time.Second {
		t.Errorf("expected 30s inference timeout, got %v", cfg.InferenceTimeout)
	}
	// Unset fields keep their defaults.
	if cfg.Server.MetricsPort != 9090 {
		t.Errorf("expected default metrics port, got %d", cfg.Server.MetricsPort)
	}
}

func TestLoadEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	path := writeConfig(t, `
provider:
  name: openai
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.APIKey != "sk-from-env" {
		t.Errorf("expected api key from environment, got %q", cfg.Provider.APIKey)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "store:\n  backend: dynamo\n"},
		{"empty provider", "provider:\n  name: \"\"\n"},
		{"negative rate limit", "server:\n  rate_limit:\n    requests_per_second: -1\n"},
		{"malformed yaml", "provider: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected Load to fail")
			}
		})
	}
}

func TestProviderOptions(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = "tok"
	cfg.Provider.AccountID = "acct"
	cfg.Provider.BaseURL = "http://localhost:1234"

	opts := cfg.ProviderOptions()
	if opts["api_token"] != "tok" {
		t.Errorf("expected api_token in options, got %v", opts)
	}
	if opts["account_id"] != "acct" {
		t.Errorf("expected account_id in options, got %v", opts)
	}
	if opts["base_url"] != "http://localhost:1234" {
		t.Errorf("expected base_url in options, got %v", opts)
	}
}
