// ABOUTME: OpenAI-compatible embeddings API provider.
// ABOUTME: Sends batched inputs to /embeddings and restores input order by index.
package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DefaultOpenAIURL is the OpenAI API root.
	DefaultOpenAIURL = "https://api.openai.com/v1"
	// DefaultOpenAIModel produces 1536-dimensional vectors.
	DefaultOpenAIModel = "text-embedding-3-small"
)

// OpenAIProvider embeds text through an OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	http      httpClient
	model     string
	dimension int
}

// NewOpenAIProvider creates a provider for model served at apiURL.
func NewOpenAIProvider(apiURL, apiKey, model string, dimension int, timeout time.Duration) *OpenAIProvider {
	if apiURL == "" {
		apiURL = DefaultOpenAIURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		http:      newHTTPClient(apiURL, apiKey, timeout),
		model:     model,
		dimension: dimension,
	}
}

type openAIRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Encode implements Provider.
func (p *OpenAIProvider) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.encode(ctx, "encode", []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch implements Provider.
func (p *OpenAIProvider) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.encode(ctx, "encode_batch", texts)
}

func (p *OpenAIProvider) encode(ctx context.Context, op string, texts []string) ([][]float32, error) {
	if err := checkInputs(p.model, op, texts); err != nil {
		return nil, err
	}

	body, err := p.http.postJSON(ctx, "/embeddings", openAIRequest{
		Input:          texts,
		Model:          p.model,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, &EmbeddingError{Model: p.model, Op: op, Err: err}
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &EmbeddingError{Model: p.model, Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(resp.Data) != len(texts) {
		return nil, &EmbeddingError{Model: p.model, Op: op, Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))}
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, &EmbeddingError{Model: p.model, Op: op, Err: fmt.Errorf("invalid embedding index %d", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Dimension implements Provider.
func (p *OpenAIProvider) Dimension() int { return p.dimension }

// Model implements Provider.
func (p *OpenAIProvider) Model() string { return p.model }
