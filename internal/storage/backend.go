// ABOUTME: Selects the persistence backend named in configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/2389-research/affinity/internal/config"
)

// OpenBackend opens the backend named by cfg.Storage.Backend.
// The memory backend has no persistence and is returned as nil.
func OpenBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return nil, nil
	case "sqlite", "":
		path, err := cfg.GetStoragePath()
		if err != nil {
			return nil, err
		}
		return NewSQLiteBackend(path)
	case "markdown":
		path, err := cfg.GetStoragePath()
		if err != nil {
			return nil, err
		}
		return NewMarkdownBackend(path)
	case "postgres":
		return NewPostgresBackend(ctx, cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
