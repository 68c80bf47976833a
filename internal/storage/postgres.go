// ABOUTME: PostgreSQL persistence backend for entries.
// ABOUTME: Stores embeddings as REAL[] columns via lib/pq array support.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/2389-research/affinity/internal/models"
)

var _ Backend = (*PostgresBackend)(nil)

// PostgresBackend persists entries in a PostgreSQL table.
type PostgresBackend struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS entries (
	seq        BIGSERIAL,
	id         UUID PRIMARY KEY,
	text       TEXT NOT NULL,
	embedding  REAL[] NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// NewPostgresBackend connects using dsn and ensures the entries table exists.
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresBackend{db: db}, nil
}

// Load implements Backend.
func (b *PostgresBackend) Load(ctx context.Context) ([]models.Entry, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, text, embedding, created_at FROM entries ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.Entry
	for rows.Next() {
		var idStr, text string
		var vec pq.Float64Array
		var createdAt time.Time
		if err := rows.Scan(&idStr, &text, &vec, &createdAt); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID %q: %w", idStr, err)
		}

		embedding := make([]float32, len(vec))
		for i, v := range vec {
			embedding[i] = float32(v)
		}
		entries = append(entries, models.Entry{ID: id, Text: text, Embedding: embedding, CreatedAt: createdAt.UTC()})
	}
	return entries, rows.Err()
}

// Insert implements Backend.
func (b *PostgresBackend) Insert(ctx context.Context, entry models.Entry) error {
	vec := make(pq.Float64Array, len(entry.Embedding))
	for i, v := range entry.Embedding {
		vec[i] = float64(v)
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO entries (id, text, embedding, created_at) VALUES ($1, $2, $3, $4)`,
		entry.ID.String(), entry.Text, vec, entry.CreatedAt,
	)
	return err
}

// Delete implements Backend.
func (b *PostgresBackend) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id.String())
	return err
}

// Close implements Backend.
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
