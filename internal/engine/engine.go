// ABOUTME: Coordinates the entry store and the similarity ranker.
// ABOUTME: Composes submissions, ranks against one consistent snapshot, and applies limits.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/2389-research/affinity/internal/logging"
	"github.com/2389-research/affinity/internal/models"
	"github.com/2389-research/affinity/internal/ranking"
	"github.com/2389-research/affinity/internal/storage"
)

// RankOptions controls the shape of a ranking.
type RankOptions struct {
	// PrependQuery places the query entry first in the semantic order.
	PrependQuery bool
	// Limit truncates the semantic order when positive. A prepended query counts.
	Limit int
}

// Ranking is the result of ranking one entry against the rest of the store.
type Ranking struct {
	Query    models.Entry     `json:"query"`
	Semantic []ranking.Result `json:"semantic"`
	Original []models.Entry   `json:"original"`
}

// SemanticTexts returns the texts of the semantic order.
func (r *Ranking) SemanticTexts() []string {
	texts := make([]string, len(r.Semantic))
	for i, res := range r.Semantic {
		texts[i] = res.Entry.Text
	}
	return texts
}

// OriginalTexts returns the texts in insertion order.
func (r *Ranking) OriginalTexts() []string {
	return models.Texts(r.Original)
}

// Engine is the application service shared by the CLI, HTTP API and MCP server.
type Engine struct {
	store  storage.EntryStore
	ranker *ranking.Ranker
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine over store. A nil ranker uses cosine similarity.
func New(store storage.EntryStore, ranker *ranking.Ranker, opts ...Option) *Engine {
	if ranker == nil {
		ranker = ranking.NewRanker(nil)
	}
	e := &Engine{
		store:  store,
		ranker: ranker,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying entry store.
func (e *Engine) Store() storage.EntryStore {
	return e.store
}

// Submit composes "I am <who> and I love <loves>" and stores it.
func (e *Engine) Submit(ctx context.Context, who, loves string) (models.Entry, error) {
	text, err := models.ComposeSubmission(who, loves)
	if err != nil {
		return models.Entry{}, err
	}
	return e.AddText(ctx, text)
}

// AddText stores an already composed text and returns the new entry.
func (e *Engine) AddText(ctx context.Context, text string) (models.Entry, error) {
	id, err := e.store.Add(ctx, text)
	if err != nil {
		e.logger.Error("add failed", "error", err)
		return models.Entry{}, err
	}
	entry, err := e.store.Get(id)
	if err != nil {
		// Removed concurrently between Add and Get.
		return models.Entry{}, err
	}
	e.logger.Info("entry added", "id", id)
	return entry, nil
}

// AddTexts stores several composed texts with one embedding call and returns
// the new entries in input order. On a partial failure the entries that were
// stored are returned with the error.
func (e *Engine) AddTexts(ctx context.Context, texts []string) ([]models.Entry, error) {
	if len(texts) == 0 {
		return nil, models.ErrEmptyText
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, models.ErrEmptyText
		}
	}

	ids, err := e.store.AddBatch(ctx, texts)
	added := make([]models.Entry, 0, len(ids))
	for _, id := range ids {
		entry, getErr := e.store.Get(id)
		if getErr != nil {
			continue
		}
		added = append(added, entry)
	}
	if err != nil {
		e.logger.Error("batch add failed", "added", len(added), "requested", len(texts), "error", err)
		return added, err
	}
	e.logger.Info("entries added", "count", len(added))
	return added, nil
}

// Remove deletes the entry with id and reports whether it existed.
func (e *Engine) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	removed, err := e.store.Remove(ctx, id)
	if err != nil {
		e.logger.Error("remove failed", "id", id, "error", err)
		return false, err
	}
	e.logger.Info("remove", "id", id, "removed", removed)
	return removed, nil
}

// Original returns all entries in insertion order.
func (e *Engine) Original() []models.Entry {
	return e.store.List()
}

// Rank orders every other entry by similarity to the entry with id. The query and
// the pool come from a single snapshot so concurrent mutations never mix in.
func (e *Engine) Rank(_ context.Context, id uuid.UUID, opts RankOptions) (*Ranking, error) {
	snapshot := e.store.List()

	var (
		query models.Entry
		found bool
	)
	for _, entry := range snapshot {
		if entry.ID == id {
			query, found = entry, true
			break
		}
	}
	if !found {
		return nil, &storage.NotFoundError{ID: id}
	}

	ordered, err := e.ranker.Order(query, snapshot, opts.PrependQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to rank entry %s: %w", id, err)
	}
	if opts.Limit > 0 && len(ordered) > opts.Limit {
		ordered = ordered[:opts.Limit]
	}

	e.logger.Debug("ranked",
		"id", id,
		"metric", e.ranker.Metric().Name(),
		"pool", len(snapshot),
		"results", len(ordered),
	)

	return &Ranking{
		Query:    query,
		Semantic: ordered,
		Original: snapshot,
	}, nil
}

// SubmitAndRank stores a new submission and ranks the existing entries against it.
func (e *Engine) SubmitAndRank(ctx context.Context, who, loves string, opts RankOptions) (*Ranking, error) {
	text, err := models.ComposeSubmission(who, loves)
	if err != nil {
		return nil, err
	}
	return e.AddAndRank(ctx, text, opts)
}

// AddAndRank stores text and ranks the existing entries against it.
func (e *Engine) AddAndRank(ctx context.Context, text string, opts RankOptions) (*Ranking, error) {
	entry, err := e.AddText(ctx, text)
	if err != nil {
		return nil, err
	}
	return e.Rank(ctx, entry.ID, opts)
}
