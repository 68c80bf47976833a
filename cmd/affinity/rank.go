// ABOUTME: CLI command for ranking entries against one of them.
// ABOUTME: Prints original and semantic orders side by side, or JSON.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/2389-research/affinity/internal/engine"
	"github.com/2389-research/affinity/internal/tui"
)

var rankCmd = &cobra.Command{
	Use:   "rank <id>",
	Short: "Rank every other entry by similarity to one entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRank,
}

// Flags
var (
	rankPrepend bool
	rankLimit   int
	rankJSON    bool
)

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().BoolVar(&rankPrepend, "prepend", true, "Show the query entry first (defaults to ranking.prepend_query)")
	rankCmd.Flags().IntVar(&rankLimit, "limit", 0, "Maximum number of ranked entries to show (0 for all)")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "Print the ranking as JSON")
}

func runRank(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid entry id %q: %w", args[0], err)
	}

	prepend := globalConfig.Ranking.PrependQuery
	if cmd.Flags().Changed("prepend") {
		prepend = rankPrepend
	}

	result, err := globalEngine.Rank(cmd.Context(), id, engine.RankOptions{
		PrependQuery: prepend,
		Limit:        rankLimit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rankJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"query":    result.Query.Text,
			"semantic": result.SemanticTexts(),
			"original": result.OriginalTexts(),
		})
	}

	_, _ = fmt.Fprintln(out, tui.RenderRanking(result))
	return nil
}
