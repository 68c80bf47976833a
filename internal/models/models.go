// ABOUTME: Core data models for ranked entries and the submission template.
// ABOUTME: Provides the Entry type, its constructor, and template composition.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubmissionTemplate is the fixed sentence every submission is composed into.
const SubmissionTemplate = "I am %s and I love %s"

// ErrMissingFragment is returned when a template fragment is empty.
var ErrMissingFragment = errors.New("both fragments are required")

// ErrEmptyText is returned when a free-form entry text is blank.
var ErrEmptyText = errors.New("entry text is empty")

// Entry is a stored (text, embedding) pair. Entries are never mutated after insertion.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEntry creates an entry with a generated UUID and timestamp.
// The embedding is copied so later changes to vec are not observed. Timestamps
// carry microsecond precision so every backend round-trips them exactly.
func NewEntry(text string, vec []float32) Entry {
	return Entry{
		ID:        uuid.New(),
		Text:      text,
		Embedding: CloneVector(vec),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// Dimension returns the length of the entry's embedding.
func (e Entry) Dimension() int {
	return len(e.Embedding)
}

// ComposeSubmission fills the submission template with the two fragments.
func ComposeSubmission(who, loves string) (string, error) {
	who = strings.TrimSpace(who)
	loves = strings.TrimSpace(loves)
	if who == "" || loves == "" {
		return "", ErrMissingFragment
	}
	return fmt.Sprintf(SubmissionTemplate, who, loves), nil
}

// CloneVector returns a copy of vec, or nil for an empty vector.
func CloneVector(vec []float32) []float32 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}

// Texts returns the text of each entry, preserving order.
func Texts(entries []Entry) []string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	return texts
}
