// ABOUTME: MCP tool implementations for entry and ranking operations.
// ABOUTME: Registers submit_entry, remove_entry, list_entries, rank_entries.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/affinity/internal/engine"
	"github.com/2389-research/affinity/internal/models"
	"github.com/2389-research/affinity/internal/storage"
)

func (s *Server) registerEntryTools() {
	s.mcp.AddTool(&gomcp.Tool{
		Name:        "submit_entry",
		Description: "Add an entry of the form \"I am <who> and I love <loves>\" and return every other entry ranked by semantic similarity to it.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"who": {"type": "string", "description": "Who is speaking, e.g. \"panda\""},
				"loves": {"type": "string", "description": "What they love, e.g. \"bamboos\""},
				"limit": {"type": "number", "description": "Maximum number of ranked entries to return (default: all)"}
			},
			"required": ["who", "loves"]
		}`),
	}, s.handleSubmitEntry)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "remove_entry",
		Description: "Remove an entry by id. Removing an id that does not exist is not an error.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {"type": "string", "description": "Entry UUID"}
			},
			"required": ["id"]
		}`),
	}, s.handleRemoveEntry)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "list_entries",
		Description: "List all entries in the order they were added.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	}, s.handleListEntries)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "rank_entries",
		Description: "Rank every other entry by semantic similarity to the entry with the given id.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {"type": "string", "description": "UUID of the query entry"},
				"prepend": {"type": "boolean", "description": "Place the query entry first (default: server setting)"},
				"limit": {"type": "number", "description": "Maximum number of ranked entries to return (default: all)"}
			},
			"required": ["id"]
		}`),
	}, s.handleRankEntries)
}

func (s *Server) handleSubmitEntry(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Who   string `json:"who"`
		Loves string `json:"loves"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	result, err := s.engine.SubmitAndRank(ctx, args.Who, args.Loves, engine.RankOptions{
		PrependQuery: s.prepend,
		Limit:        args.Limit,
	})
	if err != nil {
		if errors.Is(err, models.ErrMissingFragment) {
			return toolError("who and loves are both required"), nil
		}
		s.logger.Error("submit_entry failed", "error", err)
		return toolError("failed to submit entry: %v", err), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Entry added: %s\nID: %s\n\n", result.Query.Text, result.Query.ID))
	writeRanking(&sb, result)

	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: sb.String()}},
	}, nil
}

func (s *Server) handleRemoveEntry(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	id, err := parseID(args.ID)
	if err != nil {
		return toolError("%v", err), nil
	}

	removed, err := s.engine.Remove(ctx, id)
	if err != nil {
		return toolError("failed to remove entry: %v", err), nil
	}

	text := fmt.Sprintf("Entry %s removed.", id)
	if !removed {
		text = fmt.Sprintf("Entry %s was not present.", id)
	}
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: text}},
	}, nil
}

func (s *Server) handleListEntries(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	entries := s.engine.Original()
	if len(entries) == 0 {
		return &gomcp.CallToolResult{
			Content: []gomcp.Content{&gomcp.TextContent{Text: "No entries found."}},
		}, nil
	}

	var sb strings.Builder
	for _, entry := range entries {
		sb.WriteString(fmt.Sprintf("- %s %s (%s)\n",
			entry.ID,
			entry.Text,
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
		))
	}

	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: sb.String()}},
	}, nil
}

func (s *Server) handleRankEntries(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		ID      string `json:"id"`
		Prepend *bool  `json:"prepend"`
		Limit   int    `json:"limit"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	id, err := parseID(args.ID)
	if err != nil {
		return toolError("%v", err), nil
	}

	prepend := s.prepend
	if args.Prepend != nil {
		prepend = *args.Prepend
	}

	result, err := s.engine.Rank(ctx, id, engine.RankOptions{PrependQuery: prepend, Limit: args.Limit})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return toolError("entry %s not found", id), nil
		}
		return toolError("failed to rank entries: %v", err), nil
	}

	var sb strings.Builder
	writeRanking(&sb, result)

	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: sb.String()}},
	}, nil
}

// writeRanking renders the semantic order followed by the original order.
func writeRanking(sb *strings.Builder, result *engine.Ranking) {
	sb.WriteString("Semantic order:\n")
	if len(result.Semantic) == 0 {
		sb.WriteString("(no other entries)\n")
	}
	for i, r := range result.Semantic {
		sb.WriteString(fmt.Sprintf("%d. %s (%.4f)\n", i+1, r.Entry.Text, r.Score))
	}

	sb.WriteString("\nOriginal order:\n")
	for i, e := range result.Original {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, e.Text))
	}
}

func parseID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %v", raw, err)
	}
	return id, nil
}

// toolError creates an error result for MCP tool responses.
func toolError(format string, args ...interface{}) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
