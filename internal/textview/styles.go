package textview

import "github.com/charmbracelet/lipgloss"

// Styles holds the text view's lipgloss styles.
type Styles struct {
	Plain      lipgloss.Style
	Comment    lipgloss.Style
	ListMarker lipgloss.Style
	Key        lipgloss.Style
	Bool       lipgloss.Style
	Null       lipgloss.Style
	Number     lipgloss.Style
	String     lipgloss.Style
	Cursor     lipgloss.Style
	Selection  lipgloss.Style
	Gutter     lipgloss.Style
	Valid      lipgloss.Style
	Invalid    lipgloss.Style
	Status     lipgloss.Style
}

// DefaultStyles returns styles that read on light and dark terminals.
func DefaultStyles() Styles {
	return Styles{
		Plain:      lipgloss.NewStyle(),
		Comment:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		ListMarker: lipgloss.NewStyle().Foreground(lipgloss.Color("#4db6ac")).Bold(true),
		Key:        lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")),
		Bool:       lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		Null:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		Number:     lipgloss.NewStyle().Foreground(lipgloss.Color("#ff8a65")),
		String:     lipgloss.NewStyle().Foreground(lipgloss.Color("#ce93d8")),
		Cursor:     lipgloss.NewStyle().Reverse(true),
		Selection:  lipgloss.NewStyle().Background(lipgloss.Color("#37474f")),
		Gutter:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Valid:      lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true),
		Invalid:    lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true),
		Status:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")),
	}
}

func (s Styles) class(c Class) lipgloss.Style {
	switch c {
	case ClassComment:
		return s.Comment
	case ClassListMarker:
		return s.ListMarker
	case ClassKey:
		return s.Key
	case ClassBool:
		return s.Bool
	case ClassNull:
		return s.Null
	case ClassNumber:
		return s.Number
	case ClassString:
		return s.String
	}
	return s.Plain
}
