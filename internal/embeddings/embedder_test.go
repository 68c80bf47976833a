// ABOUTME: Tests for embedding providers using httptest servers and the hash provider.
// ABOUTME: Covers request shapes, response decoding, batching, and EmbeddingError.
package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/affinity/internal/config"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashProviderDeterministic(t *testing.T) {
	p := NewHashProvider(64)
	ctx := context.Background()

	a, err := p.Encode(ctx, "I am panda and I love bamboos")
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	b, _ := p.Encode(ctx, "I am panda and I love bamboos")

	if len(a) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical vectors, differ at %d", i)
		}
	}
	if math.Abs(dot(a, a)-1.0) > 1e-5 {
		t.Errorf("expected unit norm, got %f", dot(a, a))
	}
}

func TestHashProviderSharedWordsAreCloser(t *testing.T) {
	p := NewHashProvider(256)
	ctx := context.Background()

	base, _ := p.Encode(ctx, "I love bamboo forests")
	near, _ := p.Encode(ctx, "I love bamboo shoots")
	far, _ := p.Encode(ctx, "quantum chromodynamics lecture")

	if dot(base, near) <= dot(base, far) {
		t.Errorf("expected shared-word text to score higher: near=%f far=%f", dot(base, near), dot(base, far))
	}
}

func TestHashProviderBatchMatchesSingle(t *testing.T) {
	p := NewHashProvider(32)
	ctx := context.Background()
	texts := []string{"I am fox and I love hens", "I am owl and I love mice"}

	batch, err := p.EncodeBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EncodeBatch error: %v", err)
	}
	for i, text := range texts {
		single, _ := p.Encode(ctx, text)
		for j := range single {
			if single[j] != batch[i][j] {
				t.Fatalf("batch[%d] differs from single encode at %d", i, j)
			}
		}
	}
}

func TestEmptyInputIsEmbeddingError(t *testing.T) {
	p := NewHashProvider(8)

	_, err := p.Encode(context.Background(), "   ")
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	var embErr *EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatal("expected *EmbeddingError")
	}
	if embErr.Model != HashModel || embErr.Op != "encode" {
		t.Errorf("unexpected error fields: %+v", embErr)
	}

	if _, err := p.EncodeBatch(context.Background(), nil); !errors.Is(err, ErrEmbedding) {
		t.Errorf("expected ErrEmbedding for empty batch, got %v", err)
	}
}

func TestHuggingFaceEncode(t *testing.T) {
	var receivedAuth, receivedPath string
	var receivedBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		receivedAuth = r.Header.Get("Authorization")
		receivedPath = r.URL.Path
		receivedBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[0.1, 0.2, 0.3]`))
	}))
	defer server.Close()

	p := NewHuggingFaceProvider(server.URL, "hf-token", "org/model", 3, time.Second)
	vec, err := p.Encode(context.Background(), "I am panda and I love bamboos")
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	if receivedAuth != "Bearer hf-token" {
		t.Errorf("expected bearer auth, got %q", receivedAuth)
	}
	if receivedPath != "/org/model/pipeline/feature-extraction" {
		t.Errorf("unexpected path %q", receivedPath)
	}
	var req map[string]any
	if err := json.Unmarshal(receivedBody, &req); err != nil {
		t.Fatalf("failed to unmarshal request body: %v", err)
	}
	if req["inputs"] != "I am panda and I love bamboos" {
		t.Errorf("unexpected inputs: %v", req["inputs"])
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestHuggingFaceAlternateResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrapped", `{"embedding": [1, 2]}`},
		{"single row matrix", `[[1, 2]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewHuggingFaceProvider(server.URL, "t", "m", 2, time.Second)
			vec, err := p.Encode(context.Background(), "text")
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			if len(vec) != 2 || vec[0] != 1 || vec[1] != 2 {
				t.Errorf("unexpected vector %v", vec)
			}
		})
	}
}

func TestHuggingFaceBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs []string `json:"inputs"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Inputs) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Inputs))
		}
		_, _ = w.Write([]byte(`[[1, 0], [0, 1]]`))
	}))
	defer server.Close()

	p := NewHuggingFaceProvider(server.URL, "t", "m", 2, time.Second)
	vecs, err := p.EncodeBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EncodeBatch error: %v", err)
	}
	if len(vecs) != 2 || vecs[1][1] != 1 {
		t.Errorf("unexpected matrix %v", vecs)
	}
}

func TestHuggingFaceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model is currently loading"}`))
	}))
	defer server.Close()

	p := NewHuggingFaceProvider(server.URL, "t", "m", 2, time.Second)
	_, err := p.Encode(context.Background(), "text")
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status code in error, got %q", err.Error())
	}
}

func TestHuggingFaceUnexpectedFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"something":"else"}`))
	}))
	defer server.Close()

	p := NewHuggingFaceProvider(server.URL, "t", "m", 2, time.Second)
	if _, err := p.Encode(context.Background(), "text"); !errors.Is(err, ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestOpenAIEncodeBatchRestoresOrder(t *testing.T) {
	var received openAIRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"embedding":[0,1],"index":1},
			{"embedding":[1,0],"index":0}
		],"model":"text-embedding-3-small"}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(server.URL, "sk-test", "", 2, time.Second)
	vecs, err := p.EncodeBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EncodeBatch error: %v", err)
	}

	if received.Model != DefaultOpenAIModel {
		t.Errorf("expected default model, got %q", received.Model)
	}
	if len(received.Input) != 2 || received.Input[0] != "first" {
		t.Errorf("unexpected input %v", received.Input)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("expected vectors reordered by index, got %v", vecs)
	}
}

func TestOpenAICountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(server.URL, "k", "m", 2, time.Second)
	if _, err := p.Encode(context.Background(), "text"); !errors.Is(err, ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewOpenAIProvider(server.URL, "k", "m", 2, 5*time.Second)
	if _, err := p.Encode(ctx, "text"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	p, err := New(config.EmbeddingsConfig{Provider: "hash", Dimension: 16})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if p.Dimension() != 16 || p.Model() != HashModel {
		t.Errorf("unexpected provider %T dim=%d", p, p.Dimension())
	}

	p, err = New(config.EmbeddingsConfig{Provider: "huggingface", APIKey: "t", Dimension: 384})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if p.Model() != DefaultHuggingFaceModel {
		t.Errorf("expected default HF model, got %q", p.Model())
	}

	if _, err := New(config.EmbeddingsConfig{Provider: "openai", Dimension: 1536}); err == nil {
		t.Error("expected error for openai without key")
	}
	if _, err := New(config.EmbeddingsConfig{Provider: "nope", Dimension: 4}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
