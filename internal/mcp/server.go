// ABOUTME: MCP server initialization and configuration for affinity.
// ABOUTME: Sets up the server with entry and ranking tools for AI agent access.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/affinity/internal/engine"
	"github.com/2389-research/affinity/internal/logging"
)

// Server wraps the MCP server around the ranking engine.
type Server struct {
	mcp     *gomcp.Server
	engine  *engine.Engine
	prepend bool
	logger  *slog.Logger
}

// ServerOption configures optional Server dependencies.
type ServerOption func(*Server)

// WithPrependQuery sets the default prepend mode for rank_entries.
func WithPrependQuery(prepend bool) ServerOption {
	return func(s *Server) {
		s.prepend = prepend
	}
}

// WithLogger sets the server's logger. It must not write to stdout.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates an MCP server exposing the engine's operations.
func NewServer(eng *engine.Engine, version string, opts ...ServerOption) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if version == "" {
		version = "dev"
	}

	mcpServer := gomcp.NewServer(
		&gomcp.Implementation{
			Name:    "affinity",
			Version: version,
		},
		nil,
	)

	s := &Server{
		mcp:     mcpServer,
		engine:  eng,
		prepend: true,
		logger:  logging.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerEntryTools()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	return s.mcp.Run(ctx, &gomcp.StdioTransport{})
}
