// ABOUTME: Tests for affinity configuration loading and path expansion.
// ABOUTME: Covers YAML parsing, defaults, env overrides, and validation.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"tilde only", "~", home},
		{"tilde slash", "~/foo/bar", filepath.Join(home, "foo", "bar")},
		{"absolute", "/tmp/foo", "/tmp/foo"},
		{"relative", "foo/bar", "foo/bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// clearEnv unsets every variable ApplyEnv reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AFFINITY_EMBEDDINGS_PROVIDER", "HF_API_TOKEN", "OPENAI_API_KEY",
		"AFFINITY_DATABASE_URL", "DATABASE_URL", "AFFINITY_LOG_LEVEL", "AFFINITY_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Embeddings.Provider != "hash" {
		t.Errorf("expected default provider 'hash', got %q", cfg.Embeddings.Provider)
	}
	if cfg.Embeddings.Dimension != 0 {
		t.Errorf("expected dimension left to the provider, got %d", cfg.Embeddings.Dimension)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected default backend 'sqlite', got %q", cfg.Storage.Backend)
	}
	if !cfg.Ranking.PrependQuery {
		t.Error("expected prepend_query to default to true")
	}
	cfg.Resolve()
	if cfg.Embeddings.Dimension != 384 {
		t.Errorf("expected resolved dimension 384, got %d", cfg.Embeddings.Dimension)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "affinity")
	if err := os.MkdirAll(configDir, 0750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configData := `embeddings:
  provider: huggingface
  model: sentence-transformers/paraphrase-MiniLM-L3-v2
  api_key: "hf-test"
  dimension: 384
  timeout_seconds: 5
storage:
  backend: markdown
  path: "~/entries"
ranking:
  metric: euclidean
  prepend_query: false
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configData), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Embeddings.Provider != "huggingface" {
		t.Errorf("expected provider 'huggingface', got %q", cfg.Embeddings.Provider)
	}
	if cfg.Embeddings.APIKey != "hf-test" {
		t.Errorf("expected api_key 'hf-test', got %q", cfg.Embeddings.APIKey)
	}
	if cfg.Embeddings.Timeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Embeddings.Timeout())
	}
	if cfg.Ranking.Metric != "euclidean" {
		t.Errorf("expected metric 'euclidean', got %q", cfg.Ranking.Metric)
	}
	if cfg.Ranking.PrependQuery {
		t.Error("expected prepend_query false from file")
	}
	// Unset sections keep their defaults.
	if cfg.Server.Addr != "127.0.0.1:5000" {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}

	home, _ := os.UserHomeDir()
	got, err := cfg.GetStoragePath()
	if err != nil {
		t.Fatalf("GetStoragePath() error: %v", err)
	}
	if want := filepath.Join(home, "entries"); got != want {
		t.Errorf("GetStoragePath() = %q, want %q", got, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("AFFINITY_EMBEDDINGS_PROVIDER", "huggingface")
	t.Setenv("HF_API_TOKEN", "hf-from-env")
	t.Setenv("DATABASE_URL", "postgres://fallback")
	t.Setenv("AFFINITY_LOG_LEVEL", "debug")
	t.Setenv("AFFINITY_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Embeddings.Provider != "huggingface" {
		t.Errorf("expected provider override, got %q", cfg.Embeddings.Provider)
	}
	cfg.Resolve()
	if cfg.Embeddings.APIKey != "hf-from-env" {
		t.Errorf("expected HF_API_TOKEN to populate api_key, got %q", cfg.Embeddings.APIKey)
	}
	if cfg.Storage.DSN != "postgres://fallback" {
		t.Errorf("expected DATABASE_URL fallback, got %q", cfg.Storage.DSN)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level override, got %q", cfg.Log.Level)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr override, got %q", cfg.Server.Addr)
	}

	t.Setenv("AFFINITY_DATABASE_URL", "postgres://primary")
	cfg.ApplyEnv()
	if cfg.Storage.DSN != "postgres://primary" {
		t.Errorf("expected AFFINITY_DATABASE_URL to win, got %q", cfg.Storage.DSN)
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := Default()
	cfg.Embeddings.Provider = "openai"
	cfg.Embeddings.Model = "text-embedding-3-small"
	cfg.Embeddings.APIKey = "saved-key"
	cfg.Embeddings.Dimension = 1536

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.Embeddings.APIKey != "saved-key" {
		t.Errorf("expected api_key 'saved-key', got %q", loaded.Embeddings.APIKey)
	}
	if loaded.Embeddings.Dimension != 1536 {
		t.Errorf("expected dimension 1536, got %d", loaded.Embeddings.Dimension)
	}
}

func TestResolveFollowsFinalProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HF_API_TOKEN", "hf_secret")
	t.Setenv("OPENAI_API_KEY", "sk-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Embeddings.APIKey != "" {
		t.Fatalf("expected no key for the hash provider, got %q", cfg.Embeddings.APIKey)
	}

	// A command-line override lands after Load.
	cfg.Embeddings.Provider = "huggingface"
	cfg.Resolve()
	if cfg.Embeddings.APIKey != "hf_secret" {
		t.Errorf("expected HF_API_TOKEN for overridden provider, got %q", cfg.Embeddings.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("resolved config should validate: %v", err)
	}
}

func TestResolveDimension(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name     string
		provider string
		model    string
		set      int
		want     int
	}{
		{"hash default", "hash", "", 0, 384},
		{"huggingface default", "huggingface", "", 0, 384},
		{"openai small", "openai", "", 0, 1536},
		{"openai large", "openai", "text-embedding-3-large", 0, 3072},
		{"explicit wins", "openai", "", 256, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Embeddings.Provider = tt.provider
			cfg.Embeddings.Model = tt.model
			cfg.Embeddings.Dimension = tt.set
			cfg.Resolve()
			if cfg.Embeddings.Dimension != tt.want {
				t.Errorf("expected dimension %d, got %d", tt.want, cfg.Embeddings.Dimension)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "magic" }},
		{"zero dimension", func(c *Config) { c.Embeddings.Dimension = 0 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"unknown metric", func(c *Config) { c.Ranking.Metric = "jaccard" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Resolve()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDefaultStoragePaths(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)

	cfg := Default()
	got, err := cfg.GetStoragePath()
	if err != nil {
		t.Fatalf("GetStoragePath() error: %v", err)
	}
	if want := filepath.Join(dataHome, "affinity", "affinity.db"); got != want {
		t.Errorf("GetStoragePath() = %q, want %q", got, want)
	}

	cfg.Storage.Backend = "markdown"
	got, err = cfg.GetStoragePath()
	if err != nil {
		t.Fatalf("GetStoragePath() error: %v", err)
	}
	if want := filepath.Join(dataHome, "affinity", "entries"); got != want {
		t.Errorf("GetStoragePath() = %q, want %q", got, want)
	}
}
