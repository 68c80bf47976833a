// ABOUTME: Markdown-file persistence backend for entries.
// ABOUTME: One markdown file per entry with YAML frontmatter plus a JSON .embedding sidecar.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/2389-research/affinity/internal/models"
)

var _ Backend = (*MarkdownBackend)(nil)

// MarkdownBackend stores entries as markdown files in date-based directories.
// Load must run before Insert so sequence numbers continue from disk.
type MarkdownBackend struct {
	root    string
	nextSeq int64
	paths   map[uuid.UUID]string // id -> markdown path
}

// entryFrontmatter is the YAML frontmatter for entry files.
type entryFrontmatter struct {
	ID        string `yaml:"id"`
	Seq       int64  `yaml:"seq"`
	CreatedAt string `yaml:"created_at"`
	Dimension int    `yaml:"dimension"`
}

// embeddingSidecar is the JSON content of a .embedding file.
type embeddingSidecar struct {
	Vector    []float32 `json:"vector"`
	Text      string    `json:"text"`
	Timestamp int64     `json:"timestamp"`
	Path      string    `json:"path"`
}

// NewMarkdownBackend creates a backend rooted at dir.
func NewMarkdownBackend(dir string) (*MarkdownBackend, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create entries directory: %w", err)
	}
	return &MarkdownBackend{
		root:  dir,
		paths: make(map[uuid.UUID]string),
	}, nil
}

type seqEntry struct {
	seq   int64
	entry models.Entry
}

// Load implements Backend.
func (b *MarkdownBackend) Load(ctx context.Context) ([]models.Entry, error) {
	var found []seqEntry

	err := filepath.WalkDir(b.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}

		seq, entry, err := readEntryFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		found = append(found, seqEntry{seq: seq, entry: entry})
		b.paths[entry.ID] = path
		if seq >= b.nextSeq {
			b.nextSeq = seq + 1
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].seq < found[j].seq
	})

	entries := make([]models.Entry, len(found))
	for i, f := range found {
		entries[i] = f.entry
	}
	return entries, nil
}

// Insert implements Backend.
func (b *MarkdownBackend) Insert(_ context.Context, entry models.Entry) error {
	dateDir := entry.CreatedAt.Format("2006-01-02")
	timeStr := entry.CreatedAt.Format("15-04-05-000000")
	shortID := entry.ID.String()[:8]
	path := filepath.Join(b.root, dateDir, timeStr+"-"+shortID+".md")

	seq := b.nextSeq
	fm := entryFrontmatter{
		ID:        entry.ID.String(),
		Seq:       seq,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		Dimension: len(entry.Embedding),
	}

	// The sidecar goes first so a visible .md always has its vector.
	sidecar, err := json.Marshal(embeddingSidecar{
		Vector:    entry.Embedding,
		Text:      entry.Text,
		Timestamp: entry.CreatedAt.Unix(),
		Path:      path,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	if err := atomicWrite(sidecarPath(path), sidecar); err != nil {
		return fmt.Errorf("failed to write embedding: %w", err)
	}

	content, err := renderFrontmatter(fm, entry.Text+"\n")
	if err != nil {
		return fmt.Errorf("failed to render frontmatter: %w", err)
	}
	if err := atomicWrite(path, []byte(content)); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	b.nextSeq = seq + 1
	b.paths[entry.ID] = path
	return nil
}

// Delete implements Backend.
func (b *MarkdownBackend) Delete(_ context.Context, id uuid.UUID) error {
	path, ok := b.paths[id]
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(sidecarPath(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	delete(b.paths, id)
	return nil
}

// Close implements Backend.
func (b *MarkdownBackend) Close() error {
	return nil
}

func sidecarPath(mdPath string) string {
	return strings.TrimSuffix(mdPath, ".md") + ".embedding"
}

// readEntryFile parses a markdown entry and its embedding sidecar.
func readEntryFile(path string) (int64, models.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, models.Entry{}, err
	}

	yamlStr, body := parseFrontmatter(string(data))
	if yamlStr == "" {
		return 0, models.Entry{}, fmt.Errorf("no frontmatter found")
	}

	var fm entryFrontmatter
	if err := yaml.Unmarshal([]byte(yamlStr), &fm); err != nil {
		return 0, models.Entry{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	id, err := uuid.Parse(fm.ID)
	if err != nil {
		return 0, models.Entry{}, fmt.Errorf("invalid UUID: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fm.CreatedAt)
	if err != nil {
		return 0, models.Entry{}, fmt.Errorf("invalid date: %w", err)
	}

	raw, err := os.ReadFile(sidecarPath(path))
	if err != nil {
		return 0, models.Entry{}, fmt.Errorf("missing embedding: %w", err)
	}
	var sc embeddingSidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return 0, models.Entry{}, fmt.Errorf("invalid embedding: %w", err)
	}

	return fm.Seq, models.Entry{
		ID:        id,
		Text:      strings.TrimSuffix(body, "\n"),
		Embedding: sc.Vector,
		CreatedAt: createdAt,
	}, nil
}
