// ABOUTME: Ordered in-memory entry store with pluggable persistence.
// ABOUTME: Embeds text on add, enforces a fixed dimension, and serializes mutations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/2389-research/affinity/internal/embeddings"
	"github.com/2389-research/affinity/internal/logging"
	"github.com/2389-research/affinity/internal/models"
)

// EntryStore holds the ordered collection of (text, embedding) entries.
// Any persistence technology must satisfy this contract.
type EntryStore interface {
	// Add embeds text, appends the entry, and returns its id.
	Add(ctx context.Context, text string) (uuid.UUID, error)

	// AddBatch embeds texts in one provider call and appends them in order.
	// Nothing is stored unless every embedding is valid.
	AddBatch(ctx context.Context, texts []string) ([]uuid.UUID, error)

	// Remove deletes the entry if present and reports whether it did.
	// A missing id is not an error.
	Remove(ctx context.Context, id uuid.UUID) (bool, error)

	// List returns a snapshot of all entries in insertion order.
	List() []models.Entry

	// Get returns the entry with id, or a NotFoundError.
	Get(id uuid.UUID) (models.Entry, error)

	// Dimension returns the fixed embedding dimension of the store.
	Dimension() int

	// Close releases any resources held by the store.
	Close() error
}

// Backend persists entries across process restarts.
type Backend interface {
	// Load returns all persisted entries in insertion order.
	Load(ctx context.Context) ([]models.Entry, error)

	// Insert persists a new entry after all existing ones.
	Insert(ctx context.Context, entry models.Entry) error

	// Delete removes a persisted entry. Deleting a missing id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// Close releases backend resources.
	Close() error
}

// ErrNotFound matches any NotFoundError via errors.Is.
var ErrNotFound = errors.New("entry not found")

// NotFoundError reports a reference to an entry id that does not exist.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entry %s not found", e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

var _ EntryStore = (*Store)(nil)

// Store is the EntryStore implementation. Entries live in memory in insertion
// order; an optional Backend receives every mutation before it becomes visible.
type Store struct {
	mu       sync.RWMutex
	provider embeddings.Provider
	backend  Backend
	dim      int
	entries  []models.Entry
	byID     map[uuid.UUID]int // id -> position in entries
	logger   *slog.Logger
}

// StoreOption configures optional Store dependencies.
type StoreOption func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a store whose dimension is fixed by provider. Existing entries
// are loaded from backend (which may be nil for a purely in-memory store), and a
// loaded entry of the wrong dimension fails the whole open.
func NewStore(ctx context.Context, provider embeddings.Provider, backend Backend, opts ...StoreOption) (*Store, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if provider.Dimension() <= 0 {
		return nil, fmt.Errorf("embedding provider reports invalid dimension %d", provider.Dimension())
	}

	s := &Store{
		provider: provider,
		backend:  backend,
		dim:      provider.Dimension(),
		byID:     make(map[uuid.UUID]int),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if backend == nil {
		return s, nil
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	for _, e := range loaded {
		if err := models.CheckDimension(s.dim, len(e.Embedding)); err != nil {
			return nil, fmt.Errorf("stored entry %s: %w", e.ID, err)
		}
		s.byID[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	s.logger.Debug("loaded entries", "count", len(s.entries), "dimension", s.dim)

	return s, nil
}

// Add implements EntryStore. The embedding is computed before the store lock is
// taken, so a slow model never blocks readers.
func (s *Store) Add(ctx context.Context, text string) (uuid.UUID, error) {
	vec, err := s.provider.Encode(ctx, text)
	if err != nil {
		return uuid.Nil, err
	}
	if err := models.CheckDimension(s.dim, len(vec)); err != nil {
		return uuid.Nil, fmt.Errorf("rejecting entry from model %s: %w", s.provider.Model(), err)
	}

	entry := models.NewEntry(text, vec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.Insert(ctx, entry); err != nil {
			return uuid.Nil, fmt.Errorf("failed to persist entry: %w", err)
		}
	}
	s.byID[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)

	s.logger.Debug("entry added", "id", entry.ID, "count", len(s.entries))
	return entry.ID, nil
}

// AddBatch implements EntryStore. If the backend fails partway, the entries
// persisted before the failure stay in the store and their ids are returned
// with the error.
func (s *Store) AddBatch(ctx context.Context, texts []string) ([]uuid.UUID, error) {
	vecs, err := s.provider.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, &embeddings.EmbeddingError{
			Model: s.provider.Model(),
			Op:    "encode_batch",
			Err:   fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs)),
		}
	}

	batch := make([]models.Entry, len(texts))
	for i, vec := range vecs {
		if err := models.CheckDimension(s.dim, len(vec)); err != nil {
			return nil, fmt.Errorf("rejecting batch from model %s at text %d: %w", s.provider.Model(), i, err)
		}
		batch[i] = models.NewEntry(texts[i], vec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(batch))
	for _, entry := range batch {
		if s.backend != nil {
			if err := s.backend.Insert(ctx, entry); err != nil {
				return ids, fmt.Errorf("failed to persist entry %d of %d: %w", len(ids)+1, len(batch), err)
			}
		}
		s.byID[entry.ID] = len(s.entries)
		s.entries = append(s.entries, entry)
		ids = append(ids, entry.ID)
	}

	s.logger.Debug("batch added", "added", len(ids), "count", len(s.entries))
	return ids, nil
}

// Remove implements EntryStore.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.byID[id]
	if !ok {
		return false, nil
	}

	if s.backend != nil {
		if err := s.backend.Delete(ctx, id); err != nil {
			return false, fmt.Errorf("failed to delete entry: %w", err)
		}
	}

	s.entries = slices.Delete(s.entries, pos, pos+1)
	delete(s.byID, id)
	for i := pos; i < len(s.entries); i++ {
		s.byID[s.entries[i].ID] = i
	}

	s.logger.Debug("entry removed", "id", id, "count", len(s.entries))
	return true, nil
}

// List implements EntryStore.
func (s *Store) List() []models.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Get implements EntryStore.
func (s *Store) Get(id uuid.UUID) (models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.byID[id]
	if !ok {
		return models.Entry{}, &NotFoundError{ID: id}
	}
	return s.entries[pos], nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dimension implements EntryStore.
func (s *Store) Dimension() int {
	return s.dim
}

// Close implements EntryStore.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
