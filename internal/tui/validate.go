// ABOUTME: Embedding provider validation for the setup wizard.
// ABOUTME: Builds the configured provider and encodes a probe entry with it.
package tui

import (
	"context"
	"fmt"

	"github.com/2389-research/affinity/internal/config"
	"github.com/2389-research/affinity/internal/embeddings"
	"github.com/2389-research/affinity/internal/models"
)

// ProbeText is the entry encoded to check a provider configuration.
var ProbeText = fmt.Sprintf(models.SubmissionTemplate, "panda", "bamboos")

// ValidateProvider encodes ProbeText with the provider described by cfg and
// returns the embedding dimension it produced.
// The context allows cancellation when the user quits during validation.
func ValidateProvider(ctx context.Context, cfg config.EmbeddingsConfig) (int, error) {
	provider, err := embeddings.New(cfg)
	if err != nil {
		return 0, err
	}

	vec, err := provider.Encode(ctx, ProbeText)
	if err != nil {
		return 0, fmt.Errorf("probe encoding failed: %w", err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("model %s returned an empty embedding", provider.Model())
	}
	return len(vec), nil
}
