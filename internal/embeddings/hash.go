// ABOUTME: Offline deterministic embedding provider based on feature hashing.
// ABOUTME: Hashes words and character trigrams into a fixed-size normalized vector.
package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashModel is the model name reported by HashProvider.
const HashModel = "hash-trigram-v1"

// HashProvider produces deterministic embeddings without a model.
// Texts sharing words or word fragments land close together.
type HashProvider struct {
	dim int
}

// NewHashProvider creates a hashing provider with the given dimension.
// Non-positive dimensions fall back to 384.
func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = 384
	}
	return &HashProvider{dim: dim}
}

// Encode implements Provider.
func (p *HashProvider) Encode(_ context.Context, text string) ([]float32, error) {
	if err := checkInputs(HashModel, "encode", []string{text}); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

// EncodeBatch implements Provider.
func (p *HashProvider) EncodeBatch(_ context.Context, texts []string) ([][]float32, error) {
	if err := checkInputs(HashModel, "encode_batch", texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.vector(text)
	}
	return out, nil
}

// Dimension implements Provider.
func (p *HashProvider) Dimension() int { return p.dim }

// Model implements Provider.
func (p *HashProvider) Model() string { return HashModel }

func (p *HashProvider) vector(text string) []float32 {
	acc := make([]float64, p.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, w := range words {
		p.add(acc, "w:"+w, 1.0)
		padded := []rune("^" + w + "$")
		for i := 0; i+3 <= len(padded); i++ {
			p.add(acc, "t:"+string(padded[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, p.dim)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// add hashes feature into a bucket with a hash-derived sign.
func (p *HashProvider) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[idx] += weight
}
