// ABOUTME: SQLite persistence backend for entries.
// ABOUTME: Stores embeddings as little-endian float32 blobs ordered by an autoincrement seq.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/affinity/internal/models"
)

var _ Backend = (*SQLiteBackend)(nil)

// SQLiteBackend persists entries in a single SQLite database file.
type SQLiteBackend struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	text       TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	created_at TEXT NOT NULL
);`

// NewSQLiteBackend opens (creating if needed) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context) ([]models.Entry, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, text, embedding, created_at FROM entries ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.Entry
	for rows.Next() {
		var idStr, text, createdAt string
		var blob []byte
		if err := rows.Scan(&idStr, &text, &blob, &createdAt); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID %q: %w", idStr, err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", idStr, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("entry %s: invalid date: %w", idStr, err)
		}

		entries = append(entries, models.Entry{ID: id, Text: text, Embedding: vec, CreatedAt: ts})
	}
	return entries, rows.Err()
}

// Insert implements Backend.
func (b *SQLiteBackend) Insert(ctx context.Context, entry models.Entry) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO entries (id, text, embedding, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID.String(), entry.Text, encodeVector(entry.Embedding), entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Delete implements Backend.
func (b *SQLiteBackend) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id.String())
	return err
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// encodeVector packs vec as little-endian float32 values.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
