package textview

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the text view's key bindings.
type KeyMap struct {
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	Home      key.Binding
	End       key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	SelLeft   key.Binding
	SelRight  key.Binding
	SelUp     key.Binding
	SelDown   key.Binding
	SelHome   key.Binding
	SelEnd    key.Binding
	SelectAll key.Binding
	Indent    key.Binding
	Outdent   key.Binding
	Newline   key.Binding
	Backspace key.Binding
	Delete    key.Binding
	Cancel    key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left:      key.NewBinding(key.WithKeys("left")),
		Right:     key.NewBinding(key.WithKeys("right")),
		Up:        key.NewBinding(key.WithKeys("up")),
		Down:      key.NewBinding(key.WithKeys("down")),
		Home:      key.NewBinding(key.WithKeys("home")),
		End:       key.NewBinding(key.WithKeys("end")),
		PageUp:    key.NewBinding(key.WithKeys("pgup")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown")),
		SelLeft:   key.NewBinding(key.WithKeys("shift+left")),
		SelRight:  key.NewBinding(key.WithKeys("shift+right")),
		SelUp:     key.NewBinding(key.WithKeys("shift+up")),
		SelDown:   key.NewBinding(key.WithKeys("shift+down")),
		SelHome:   key.NewBinding(key.WithKeys("shift+home")),
		SelEnd:    key.NewBinding(key.WithKeys("shift+end")),
		SelectAll: key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "select all")),
		Indent:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "indent")),
		Outdent:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "outdent")),
		Newline:   key.NewBinding(key.WithKeys("enter")),
		Backspace: key.NewBinding(key.WithKeys("backspace")),
		Delete:    key.NewBinding(key.WithKeys("delete")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "done")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Indent, k.Outdent, k.SelectAll, k.Cancel}
}
