// ABOUTME: Shared error types for embedding dimension consistency.
// ABOUTME: Used by the entry store at add/load time and by the ranker.
package models

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch matches any DimensionMismatchError via errors.Is.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DimensionMismatchError reports a vector whose length disagrees with the store's dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CheckDimension returns a DimensionMismatchError when got differs from expected.
func CheckDimension(expected, got int) error {
	if expected != got {
		return &DimensionMismatchError{Expected: expected, Got: got}
	}
	return nil
}
