package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/themobileprof/textclass/pkg/models"
)

var (
	successColor = lipgloss.Color("#4ECDC4")
	warningColor = lipgloss.Color("#FFE66D")
	errorColor   = lipgloss.Color("#FF6B6B")
	subtleColor  = lipgloss.Color("#666666")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	subtleStyle  = lipgloss.NewStyle().Foreground(subtleColor)
	boldStyle    = lipgloss.NewStyle().Bold(true)

	colorEnabled = true
)

func setColor(enabled bool) {
	colorEnabled = enabled
}

func render(style lipgloss.Style, text string) string {
	if !colorEnabled {
		return text
	}
	return style.Render(text)
}

func title(text string) string     { return render(titleStyle, text) }
func errorText(text string) string { return render(errorStyle, "✗ "+text) }
func subtle(text string) string    { return render(subtleStyle, text) }

// confidenceBar draws p as a ten-cell bar.
func confidenceBar(p float64) string {
	filled := int(p*10 + 0.5)
	filled = max(0, min(10, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// formatResult renders one classification with its top scores.
func formatResult(text string, r *models.ClassificationResult, top int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", subtle(fmt.Sprintf("%q", text)))

	label := fmt.Sprintf("%s (%.2f)", strings.ToUpper(r.Category.String()), r.Confidence)
	if r.ShouldUseFallback {
		fmt.Fprintf(&b, "  → %s  %s\n", render(warningStyle, label),
			render(warningStyle, fmt.Sprintf("fallback: below %.2f", r.Threshold)))
	} else {
		fmt.Fprintf(&b, "  → %s  %s\n", render(successStyle.Bold(true), label), render(successStyle, "local"))
	}

	ranked := r.Ranked()
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}
	for _, s := range ranked {
		fmt.Fprintf(&b, "    %-9s %s %.3f\n", s.Category, confidenceBar(s.Probability), s.Probability)
	}
	return b.String()
}

func formatError(text string, err error) string {
	return fmt.Sprintf("%s\n  %s\n", subtle(fmt.Sprintf("%q", text)), errorText(err.Error()))
}

func header(text string) string {
	return render(boldStyle, text)
}
