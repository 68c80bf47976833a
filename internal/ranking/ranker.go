// ABOUTME: Ranks stored entries by similarity to a query embedding.
// ABOUTME: Scores all candidates in one batched pass and sorts stably, highest first.
package ranking

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/2389-research/affinity/internal/models"
)

// Result pairs an entry with its similarity to the query.
type Result struct {
	Entry models.Entry `json:"entry"`
	Score float64      `json:"score"`
}

// Ranker orders candidates by a similarity Metric.
type Ranker struct {
	metric Metric
}

// NewRanker creates a ranker using metric, or cosine when metric is nil.
func NewRanker(metric Metric) *Ranker {
	if metric == nil {
		metric = Cosine{Epsilon: DefaultEpsilon}
	}
	return &Ranker{metric: metric}
}

// Metric returns the ranker's scoring strategy.
func (r *Ranker) Metric() Metric {
	return r.metric
}

// Rank returns every candidate ordered by descending similarity to query.
// Candidates with equal scores keep their input order.
func (r *Ranker) Rank(query []float32, candidates []models.Entry) ([]Result, error) {
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	dim := len(query)
	for _, c := range candidates {
		if err := models.CheckDimension(dim, len(c.Embedding)); err != nil {
			return nil, err
		}
	}

	scores := r.scores(query, candidates)

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		// Non-finite scores sink to the bottom.
		if !isFinite(sa) || !isFinite(sb) {
			return isFinite(sa) && !isFinite(sb)
		}
		return sa > sb
	})

	results := make([]Result, len(order))
	for i, idx := range order {
		results[i] = Result{Entry: candidates[idx], Score: scores[idx]}
	}
	return results, nil
}

// Order ranks pool against query, never listing the query among the candidates.
// With prependQuery the query itself is placed first, scored against itself.
func (r *Ranker) Order(query models.Entry, pool []models.Entry, prependQuery bool) ([]Result, error) {
	candidates := make([]models.Entry, 0, len(pool))
	for _, e := range pool {
		if e.ID == query.ID {
			continue
		}
		candidates = append(candidates, e)
	}

	ranked, err := r.Rank(query.Embedding, candidates)
	if err != nil {
		return nil, err
	}
	if !prependQuery {
		return ranked, nil
	}

	self := r.scores(query.Embedding, []models.Entry{query})
	return append([]Result{{Entry: query, Score: self[0]}}, ranked...), nil
}

// scores builds the candidate matrix and applies the metric once.
func (r *Ranker) scores(query []float32, candidates []models.Entry) []float64 {
	dim := len(query)
	if dim == 0 {
		return make([]float64, len(candidates))
	}

	q := make([]float64, dim)
	for i, v := range query {
		q[i] = float64(v)
	}

	data := make([]float64, len(candidates)*dim)
	for i, c := range candidates {
		row := data[i*dim : (i+1)*dim]
		for j, v := range c.Embedding {
			row[j] = float64(v)
		}
	}

	return r.metric.Scores(q, mat.NewDense(len(candidates), dim, data))
}
