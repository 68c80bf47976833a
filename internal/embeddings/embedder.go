// ABOUTME: Embedding provider contract and its error type.
// ABOUTME: Providers turn text into fixed-dimension vectors, singly or in batch.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider generates vector embeddings from text.
// A provider is deterministic for a fixed model and input and holds no entry state.
type Provider interface {
	// Encode returns the embedding for a single text.
	Encode(ctx context.Context, text string) ([]float32, error)

	// EncodeBatch returns one embedding per text, in input order.
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int

	// Model names the underlying model.
	Model() string
}

// ErrEmbedding matches any EmbeddingError via errors.Is.
var ErrEmbedding = errors.New("embedding failed")

// EmbeddingError reports a failed embedding computation. It is never retried internally.
type EmbeddingError struct {
	Model string
	Op    string // "encode" or "encode_batch"
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed (%s, %s): %v", e.Model, e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Is reports whether target is ErrEmbedding.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}

// errEmptyInput is wrapped when a text has nothing to encode.
var errEmptyInput = errors.New("input text is empty")

func checkInputs(model, op string, texts []string) error {
	if len(texts) == 0 {
		return &EmbeddingError{Model: model, Op: op, Err: errors.New("no texts to encode")}
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return &EmbeddingError{Model: model, Op: op, Err: fmt.Errorf("text %d: %w", i, errEmptyInput)}
		}
	}
	return nil
}
