// Package theme styles the command line output.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the report title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// PanelStyle wraps a report.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for hints under a failed check.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

var labelStyle = lipgloss.NewStyle().Bold(true).Width(10)

// Check states.
const (
	CheckOK   = "ok"
	CheckWarn = "warn"
	CheckFail = "fail"
)

// CheckStyle returns a color-coded style for the given check state.
func CheckStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch state {
	case CheckOK:
		return base.Foreground(ColorGreen)
	case CheckWarn:
		return base.Foreground(ColorYellow)
	case CheckFail:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

func checkMark(state string) string {
	switch state {
	case CheckOK:
		return "✓"
	case CheckFail:
		return "✗"
	default:
		return "!"
	}
}

// CheckLine renders one line of a check report.
func CheckLine(state, name, detail string) string {
	return CheckStyle(state).Render(checkMark(state)) + " " +
		labelStyle.Render(name) + " " + detail
}

// Report renders a titled panel of lines.
func Report(title string, lines ...string) string {
	body := HeaderStyle.Render(title) + "\n\n" + strings.Join(lines, "\n")
	return PanelStyle.Render(body)
}
