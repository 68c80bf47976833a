// ABOUTME: Similarity metrics used by the ranker, computed over a candidate matrix.
// ABOUTME: Cosine is the default; dot product and euclidean are drop-in alternatives.
package ranking

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultEpsilon guards the cosine denominator against zero norms.
const DefaultEpsilon = 1e-10

// Metric scores every candidate row against a query in one pass.
// Higher scores mean closer. Implementations must return one score per row.
type Metric interface {
	Name() string
	Scores(query []float64, candidates *mat.Dense) []float64
}

// Cosine scores by dot(q, v) / (|q|*|v| + Epsilon). Zero vectors score 0.
type Cosine struct {
	Epsilon float64
}

// Name implements Metric.
func (Cosine) Name() string { return "cosine" }

// Scores implements Metric.
func (c Cosine) Scores(query []float64, candidates *mat.Dense) []float64 {
	eps := c.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	dots := product(query, candidates)
	qNorm := floats.Norm(query, 2)

	n, _ := candidates.Dims()
	for i := 0; i < n; i++ {
		vNorm := floats.Norm(candidates.RawRowView(i), 2)
		dots[i] /= qNorm*vNorm + eps
	}
	return dots
}

// DotProduct scores by the raw inner product.
type DotProduct struct{}

// Name implements Metric.
func (DotProduct) Name() string { return "dot" }

// Scores implements Metric.
func (DotProduct) Scores(query []float64, candidates *mat.Dense) []float64 {
	return product(query, candidates)
}

// Euclidean scores by 1 / (1 + |q - v|), so identical vectors score 1.
type Euclidean struct{}

// Name implements Metric.
func (Euclidean) Name() string { return "euclidean" }

// Scores implements Metric.
func (Euclidean) Scores(query []float64, candidates *mat.Dense) []float64 {
	n, _ := candidates.Dims()
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = 1 / (1 + floats.Distance(query, candidates.RawRowView(i), 2))
	}
	return scores
}

// product computes candidates * query as a single matrix-vector multiplication.
func product(query []float64, candidates *mat.Dense) []float64 {
	n, _ := candidates.Dims()
	var out mat.VecDense
	out.MulVec(candidates, mat.NewVecDense(len(query), query))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = out.AtVec(i)
	}
	return scores
}

// MetricByName maps a config name to a Metric.
func MetricByName(name string) (Metric, error) {
	switch name {
	case "cosine", "":
		return Cosine{Epsilon: DefaultEpsilon}, nil
	case "dot":
		return DotProduct{}, nil
	case "euclidean":
		return Euclidean{}, nil
	default:
		return nil, fmt.Errorf("unknown ranking metric %q", name)
	}
}

// isFinite reports whether v is neither NaN nor infinite.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
