// ABOUTME: Configuration management for affinity with YAML config loading.
// ABOUTME: Handles embedding provider, storage backend, ranking, and .env overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Known provider, backend, and metric names.
var (
	Providers = []string{"hash", "huggingface", "openai"}
	Backends  = []string{"memory", "sqlite", "postgres", "markdown"}
	Metrics   = []string{"cosine", "dot", "euclidean"}
)

// Config stores affinity configuration loaded from ~/.config/affinity/config.yaml.
type Config struct {
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Storage    StorageConfig    `yaml:"storage"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model,omitempty"`
	APIURL         string `yaml:"api_url,omitempty"`
	APIKey         string `yaml:"api_key,omitempty"`
	Dimension      int    `yaml:"dimension,omitempty"` // 0 means the model's native size
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Timeout returns the provider request timeout, defaulting to 30s.
func (e EmbeddingsConfig) Timeout() time.Duration {
	if e.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// StorageConfig selects the persistence backend for entries.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"` // sqlite file or markdown directory
	DSN     string `yaml:"dsn,omitempty"`  // postgres connection string
}

// RankingConfig holds the similarity metric and display defaults.
type RankingConfig struct {
	Metric       string `yaml:"metric"`
	PrependQuery bool   `yaml:"prepend_query"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			Provider: "hash",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Ranking: RankingConfig{
			Metric:       "cosine",
			PrependQuery: true,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:5000",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultDimension returns the native vector size of a provider's model, or 0
// when the provider is unknown.
func DefaultDimension(provider, model string) int {
	switch provider {
	case "hash", "huggingface":
		return 384
	case "openai":
		if model == "text-embedding-3-large" {
			return 3072
		}
		return 1536
	}
	return 0
}

// Validate rejects unknown names and impossible values.
func (c *Config) Validate() error {
	if !slices.Contains(Providers, c.Embeddings.Provider) {
		return fmt.Errorf("unknown embeddings provider %q (valid: %s)", c.Embeddings.Provider, strings.Join(Providers, ", "))
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embeddings dimension must be positive, got %d", c.Embeddings.Dimension)
	}
	if !slices.Contains(Backends, c.Storage.Backend) {
		return fmt.Errorf("unknown storage backend %q (valid: %s)", c.Storage.Backend, strings.Join(Backends, ", "))
	}
	if c.Storage.Backend == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage backend postgres requires a dsn")
	}
	if !slices.Contains(Metrics, c.Ranking.Metric) {
		return fmt.Errorf("unknown ranking metric %q (valid: %s)", c.Ranking.Metric, strings.Join(Metrics, ", "))
	}
	return nil
}

// GetStoragePath returns the sqlite file or markdown directory, defaulting under the data dir.
func (c *Config) GetStoragePath() (string, error) {
	if c.Storage.Path != "" {
		return ExpandPath(c.Storage.Path)
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == "markdown" {
		return filepath.Join(dataDir, "entries"), nil
	}
	return filepath.Join(dataDir, "affinity.db"), nil
}

// DataDir returns the default affinity data directory.
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "affinity"), nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "affinity", "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Load reads config from disk, then applies .env and environment overrides.
// Returns the default config if the file doesn't exist. Callers that apply
// further overrides must call Resolve once they are done.
func Load() (*Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}

	// A missing .env is the common case.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	cfg.ApplyEnv()

	return cfg, nil
}

func loadFile() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("AFFINITY_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("AFFINITY_DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	} else if c.Storage.DSN == "" {
		c.Storage.DSN = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("AFFINITY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("AFFINITY_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Resolve fills the settings that depend on the final provider: the API key
// from HF_API_TOKEN or OPENAI_API_KEY, and the model's native dimension.
func (c *Config) Resolve() {
	if c.Embeddings.APIKey == "" {
		switch c.Embeddings.Provider {
		case "huggingface":
			c.Embeddings.APIKey = os.Getenv("HF_API_TOKEN")
		case "openai":
			c.Embeddings.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Embeddings.Dimension <= 0 {
		c.Embeddings.Dimension = DefaultDimension(c.Embeddings.Provider, c.Embeddings.Model)
	}
}

// Save writes config to disk.
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
