package diff

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles colour a rendered diff.
type Styles struct {
	File    lipgloss.Style
	Hunk    lipgloss.Style
	Added   lipgloss.Style
	Removed lipgloss.Style
	Context lipgloss.Style
}

// DefaultStyles returns the CLI's diff colours.
func DefaultStyles() Styles {
	return Styles{
		File:    lipgloss.NewStyle().Bold(true),
		Hunk:    lipgloss.NewStyle().Foreground(lipgloss.Color("#4db6ac")),
		Added:   lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		Removed: lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")),
		Context: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Render formats the diff like Unified, with colour.
func (d *FileDiff) Render(st Styles) string {
	if d.Empty() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(st.File.Render("--- " + orDevNull(d.OldPath)))
	sb.WriteString("\n")
	sb.WriteString(st.File.Render("+++ " + orDevNull(d.NewPath)))
	sb.WriteString("\n")
	for _, h := range d.Hunks {
		sb.WriteString(st.Hunk.Render(h.Header()))
		sb.WriteString("\n")
		for _, l := range h.Lines {
			style := st.Context
			switch l.Type {
			case LineAdded:
				style = st.Added
			case LineRemoved:
				style = st.Removed
			}
			sb.WriteString(style.Render(l.Prefix() + l.Content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
