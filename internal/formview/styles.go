package formview

import "github.com/charmbracelet/lipgloss"

// Styles holds the form's lipgloss styles.
type Styles struct {
	Key       lipgloss.Style
	Index     lipgloss.Style
	String    lipgloss.Style
	Number    lipgloss.Style
	Bool      lipgloss.Style
	Null      lipgloss.Style
	Container lipgloss.Style
	Cursor    lipgloss.Style
	Muted     lipgloss.Style
	Valid     lipgloss.Style
	Invalid   lipgloss.Style
	Status    lipgloss.Style
}

// DefaultStyles returns styles that read on light and dark terminals.
func DefaultStyles() Styles {
	return Styles{
		Key:       lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")).Bold(true),
		Index:     lipgloss.NewStyle().Foreground(lipgloss.Color("#4db6ac")),
		String:    lipgloss.NewStyle(),
		Number:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ff8a65")),
		Bool:      lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		Null:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		Container: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Cursor:    lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Valid:     lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true),
		Invalid:   lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")),
	}
}
