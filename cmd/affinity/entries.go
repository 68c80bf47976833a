// ABOUTME: CLI commands for entry operations.
// ABOUTME: Provides add, remove, and list subcommands.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/2389-research/affinity/internal/engine"
	"github.com/2389-research/affinity/internal/models"
	"github.com/2389-research/affinity/internal/tui"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an entry and rank the others against it",
	Long: `Add "I am <who> and I love <loves>" (or any --text) to the store, then
print the original order next to the semantic order relative to the new entry.
Repeat --text to embed several entries in one provider call; the ranking is
then shown relative to the last of them.`,
	Example: `  affinity add --who panda --loves bamboos
  affinity add --text "I am owl and I love mice"
  affinity add --text "I am fox and I love hens" --text "I am cat and I love naps"`,
	RunE: runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an entry",
	Long:  "Remove an entry by id. Removing an id that is not present is not an error.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries in insertion order",
	RunE:  runList,
}

// Flags
var (
	addWho   string
	addLoves string
	addText  []string
	addLimit int
	listJSON bool
)

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)

	addCmd.Flags().StringVar(&addWho, "who", "", "Who you are")
	addCmd.Flags().StringVar(&addLoves, "loves", "", "What you love")
	addCmd.Flags().StringArrayVar(&addText, "text", nil, "Full entry text instead of --who/--loves (repeatable)")
	addCmd.Flags().IntVar(&addLimit, "limit", 0, "Maximum number of ranked entries to show (0 for all)")
	addCmd.MarkFlagsMutuallyExclusive("text", "who")
	addCmd.MarkFlagsMutuallyExclusive("text", "loves")

	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print entries as JSON")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opts := engine.RankOptions{
		PrependQuery: globalConfig.Ranking.PrependQuery,
		Limit:        addLimit,
	}
	out := cmd.OutOrStdout()

	var (
		result *engine.Ranking
		err    error
	)
	switch len(addText) {
	case 0:
		result, err = globalEngine.SubmitAndRank(ctx, addWho, addLoves, opts)
	case 1:
		result, err = globalEngine.AddAndRank(ctx, addText[0], opts)
	default:
		var added []models.Entry
		added, err = globalEngine.AddTexts(ctx, addText)
		for _, entry := range added {
			_, _ = fmt.Fprintf(out, "Entry added: %s\n", entry.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to add entries: %w", err)
		}
		_, _ = fmt.Fprintln(out)
		result, err = globalEngine.Rank(ctx, added[len(added)-1].ID, opts)
		if err != nil {
			return fmt.Errorf("failed to rank entries: %w", err)
		}
		_, _ = fmt.Fprintln(out, tui.RenderRanking(result))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to add entry: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Entry added: %s\n\n", result.Query.ID)
	_, _ = fmt.Fprintln(out, tui.RenderRanking(result))
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid entry id %q: %w", args[0], err)
	}

	removed, err := globalEngine.Remove(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to remove entry: %w", err)
	}

	if removed {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Entry %s removed.\n", id)
	} else {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Entry %s was not present.\n", id)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	entries := globalEngine.Original()
	out := cmd.OutOrStdout()

	if listJSON {
		for i := range entries {
			entries[i].Embedding = nil
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No entries found.")
		return nil
	}
	for _, entry := range entries {
		_, _ = fmt.Fprintf(out, "%s  %s  %s\n",
			entry.ID,
			entry.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			entry.Text,
		)
	}
	return nil
}
