package formview

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the form's key bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Edit     key.Binding
	Toggle   key.Binding
	Done     key.Binding
	Cancel   key.Binding
	Add      key.Binding
	AddRoot  key.Binding
	Remove   key.Binding
	CopyPath key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Top:      key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Edit:     key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
		Toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		Done:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "done")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Add:      key.NewBinding(key.WithKeys("a", "+"), key.WithHelp("a", "add item/property")),
		AddRoot:  key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add top-level property")),
		Remove:   key.NewBinding(key.WithKeys("d", "-"), key.WithHelp("d", "remove")),
		CopyPath: key.NewBinding(key.WithKeys("y", "c"), key.WithHelp("y", "copy {{path}}")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Toggle, k.Add, k.Remove, k.CopyPath}
}
