package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"webpify/internal/processor"
)

type SummaryRow struct {
	Label string
	Value string
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)
)

// RenderFailures lists images that could not be converted, one per line.
func RenderFailures(failures []processor.Failure) string {
	if len(failures) == 0 {
		return ""
	}
	lines := []string{warnStyle.Render(fmt.Sprintf("%d image(s) failed:", len(failures)))}
	for _, f := range failures {
		lines = append(lines, fmt.Sprintf("  %s %s %s",
			dimStyle.Render("-"),
			labelStyle.Render(f.Path),
			dimStyle.Render(f.Err.Error()),
		))
	}
	return strings.Join(lines, "\n")
}
