package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the editor-wide bindings. Everything else goes to the
// focused pane.
type KeyMap struct {
	SwitchPane key.Binding
	Save       key.Binding
	Preview    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		SwitchPane: key.NewBinding(key.WithKeys("f6", "ctrl+o"), key.WithHelp("ctrl+o", "switch pane")),
		Save:       key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Preview:    key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "preview")),
		Help:       key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "help")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "ctrl+q"), key.WithHelp("ctrl+q", "quit")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SwitchPane, k.Save, k.Preview, k.Help, k.Quit}
}
