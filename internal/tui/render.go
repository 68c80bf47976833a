// ABOUTME: Terminal rendering of a ranking as two side-by-side columns.
// ABOUTME: Original insertion order on the left, semantic order with scores on the right.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/affinity/internal/engine"
)

var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	queryStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// RenderRanking lays out the original and semantic orders next to each other.
// The query entry is highlighted in both columns.
func RenderRanking(r *engine.Ranking) string {
	var left strings.Builder
	left.WriteString(headerStyle.Render("Original order"))
	for i, e := range r.Original {
		line := fmt.Sprintf("%d. %s", i+1, e.Text)
		if e.ID == r.Query.ID {
			line = queryStyle.Render(line)
		}
		left.WriteString("\n" + line)
	}

	var right strings.Builder
	right.WriteString(headerStyle.Render("Semantic order"))
	if len(r.Semantic) == 0 {
		right.WriteString("\n" + scoreStyle.Render("(no other entries)"))
	}
	for i, res := range r.Semantic {
		line := fmt.Sprintf("%d. %s", i+1, res.Entry.Text)
		if res.Entry.ID == r.Query.ID {
			line = queryStyle.Render(line)
		}
		right.WriteString("\n" + line + " " + scoreStyle.Render(fmt.Sprintf("%.4f", res.Score)))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		columnStyle.Render(left.String()),
		" ",
		columnStyle.Render(right.String()),
	)
}
