// ABOUTME: Hugging Face inference API embedding provider.
// ABOUTME: Calls the feature-extraction pipeline for sentence-transformers models.
package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DefaultHuggingFaceURL is the hosted inference endpoint root.
	DefaultHuggingFaceURL = "https://router.huggingface.co/hf-inference/models"
	// DefaultHuggingFaceModel is a small sentence-transformers model with 384 dimensions.
	DefaultHuggingFaceModel = "sentence-transformers/paraphrase-MiniLM-L3-v2"
)

// HuggingFaceProvider embeds text through the Hugging Face inference API.
type HuggingFaceProvider struct {
	http      httpClient
	model     string
	dimension int
}

// NewHuggingFaceProvider creates a provider for model served at apiURL.
// Empty apiURL and model fall back to the hosted defaults.
func NewHuggingFaceProvider(apiURL, token, model string, dimension int, timeout time.Duration) *HuggingFaceProvider {
	if apiURL == "" {
		apiURL = DefaultHuggingFaceURL
	}
	if model == "" {
		model = DefaultHuggingFaceModel
	}
	return &HuggingFaceProvider{
		http:      newHTTPClient(apiURL, token, timeout),
		model:     model,
		dimension: dimension,
	}
}

type hfRequest struct {
	Inputs any `json:"inputs"`
}

// hfEmbeddingResponse is the {"embedding": [...]} shape some deployments return.
type hfEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *HuggingFaceProvider) path() string {
	return "/" + p.model + "/pipeline/feature-extraction"
}

// Encode implements Provider.
func (p *HuggingFaceProvider) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := checkInputs(p.model, "encode", []string{text}); err != nil {
		return nil, err
	}

	body, err := p.http.postJSON(ctx, p.path(), hfRequest{Inputs: text})
	if err != nil {
		return nil, &EmbeddingError{Model: p.model, Op: "encode", Err: err}
	}

	vec, err := decodeHFVector(body)
	if err != nil {
		return nil, &EmbeddingError{Model: p.model, Op: "encode", Err: err}
	}
	return vec, nil
}

// EncodeBatch implements Provider with a single request for all texts.
func (p *HuggingFaceProvider) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkInputs(p.model, "encode_batch", texts); err != nil {
		return nil, err
	}

	body, err := p.http.postJSON(ctx, p.path(), hfRequest{Inputs: texts})
	if err != nil {
		return nil, &EmbeddingError{Model: p.model, Op: "encode_batch", Err: err}
	}

	var matrix [][]float32
	if err := json.Unmarshal(body, &matrix); err != nil {
		return nil, &EmbeddingError{Model: p.model, Op: "encode_batch", Err: fmt.Errorf("unexpected response format: %w", err)}
	}
	if len(matrix) != len(texts) {
		return nil, &EmbeddingError{Model: p.model, Op: "encode_batch", Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(matrix))}
	}
	return matrix, nil
}

// Dimension implements Provider.
func (p *HuggingFaceProvider) Dimension() int { return p.dimension }

// Model implements Provider.
func (p *HuggingFaceProvider) Model() string { return p.model }

// decodeHFVector accepts a bare vector, a single-row matrix, or {"embedding": [...]}.
func decodeHFVector(body []byte) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal(body, &vec); err == nil && len(vec) > 0 {
		return vec, nil
	}

	var matrix [][]float32
	if err := json.Unmarshal(body, &matrix); err == nil && len(matrix) == 1 && len(matrix[0]) > 0 {
		return matrix[0], nil
	}

	var wrapped hfEmbeddingResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Embedding) > 0 {
		return wrapped.Embedding, nil
	}

	return nil, fmt.Errorf("unexpected response format: %s", truncate(string(body), 200))
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
