// ABOUTME: Builds the configured embedding provider.
package embeddings

import (
	"fmt"

	"github.com/2389-research/affinity/internal/config"
)

// New returns the provider named by cfg.Provider.
func New(cfg config.EmbeddingsConfig) (Provider, error) {
	switch cfg.Provider {
	case "hash", "":
		return NewHashProvider(cfg.Dimension), nil
	case "huggingface":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API token (set HF_API_TOKEN or embeddings.api_key)")
		}
		return NewHuggingFaceProvider(cfg.APIURL, cfg.APIKey, cfg.Model, cfg.Dimension, cfg.Timeout()), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key (set OPENAI_API_KEY or embeddings.api_key)")
		}
		return NewOpenAIProvider(cfg.APIURL, cfg.APIKey, cfg.Model, cfg.Dimension, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
}
