package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/lifi/metrics"
)

// renderCounters lays out the receiver counters as a row of stat boxes.
func renderCounters(s metrics.Snapshot) string {
	boxes := []string{
		renderStatBox("Applied", s.ChunksApplied, successColor),
		renderStatBox("Repeats", s.TokensDuplicate+s.ChunksRedundant, highlightColor),
		renderStatBox("Rejected", s.TokensRejected, errorColor),
		renderStatBox("Other file", s.SessionMismatch, warningColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}
