// Package formview renders a scene as an indented list of editable rows and
// keeps the rows in step with the document with as little UI churn as
// possible.
package formview

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"promptscene/internal/document"
	"promptscene/internal/logging"
	"promptscene/internal/template"
)

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

// Editor is the document surface the form edits through.
type Editor interface {
	Snapshot() document.ChangeNotification
	UpdatePath(path string, value *document.Node, origin document.Origin, immediate bool)
	AddArrayItem(path string, seed *document.Node, origin document.Origin, immediate bool)
	RemoveArrayItem(path string, index int, origin document.Origin, immediate bool)
	AddObjectProperty(path, key string, value *document.Node, origin document.Origin, immediate bool)
	RemoveObjectProperty(path, key string, origin document.Origin, immediate bool)
}

// State is the form's interaction state.
type State int

const (
	StateIdle State = iota
	StateEditing
)

// RenderKind records how the last render was applied.
type RenderKind int

const (
	RenderNone RenderKind = iota
	RenderFull
	RenderIncremental
)

// Model is the structured form view.
type Model struct {
	doc    Editor
	keys   KeyMap
	styles Styles

	rows     []Row
	paths    []string
	bindings map[string]*Binding
	nextID   int

	cursor    int
	offset    int
	state     State
	suspended bool
	focused   bool

	adding   bool
	addPath  string
	keyInput textinput.Model

	valid   bool
	err     error
	status  string
	lastSeq uint64
	last    RenderKind

	width  int
	height int
}

// New builds a form over doc and renders its current state.
func New(doc Editor) Model {
	ki := textinput.New()
	ki.Prompt = "key: "
	ki.Placeholder = "name"

	m := Model{
		doc:      doc,
		keys:     DefaultKeyMap(),
		styles:   DefaultStyles(),
		bindings: make(map[string]*Binding),
		keyInput: ki,
		focused:  true,
		height:   20,
		width:    60,
	}
	m.renderSnapshot()
	return m
}

// SetStyles replaces the styles.
func (m *Model) SetStyles(s Styles) { m.styles = s }

// Keys returns the key bindings.
func (m Model) Keys() KeyMap { return m.keys }

// SetSize sets the pane size.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.keyInput.Width = w - len(m.keyInput.Prompt) - 1
	m.scroll()
}

// Focus gives the form keyboard focus; Blur takes it away and ends editing.
func (m *Model) Focus() { m.focused = true }

func (m *Model) Blur() {
	m.focused = false
	m.stopEditing()
}

// Focused reports whether the form has keyboard focus.
func (m Model) Focused() bool { return m.focused }

// State returns the interaction state.
func (m Model) State() State { return m.state }

// Suspended reports whether a programmatic update is being applied.
func (m Model) Suspended() bool { return m.suspended }

// Rows returns the rendered rows.
func (m Model) Rows() []Row { return m.rows }

// Binding returns the control bound to path.
func (m Model) Binding(path string) (*Binding, bool) {
	b, ok := m.bindings[path]
	return b, ok
}

// CursorPath returns the path of the selected row, or "" when there are no rows.
func (m Model) CursorPath() string {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return ""
	}
	return m.rows[m.cursor].Path
}

// SelectPath moves the cursor to path. It reports whether path is rendered.
func (m *Model) SelectPath(path string) bool {
	for i, r := range m.rows {
		if r.Path == path {
			m.stopEditing()
			m.cursor = i
			m.scroll()
			return true
		}
	}
	return false
}

// LastRender reports whether the last render was a full rebuild or an
// incremental update.
func (m Model) LastRender() RenderKind { return m.last }

// Valid reports the validity indicator; Err the error it shows.
func (m Model) Valid() bool { return m.valid }
func (m Model) Err() error  { return m.err }

// Status returns the last status message.
func (m Model) Status() string { return m.status }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case document.ChangeNotification:
		m.apply(msg)
		return m, nil

	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		if m.adding {
			return m.updateAdding(msg)
		}
		if m.state == StateEditing {
			return m.updateEditing(msg)
		}
		return m.updateIdle(msg)
	}

	// Paste and blink messages belong to whichever input is active.
	if m.adding {
		var cmd tea.Cmd
		m.keyInput, cmd = m.keyInput.Update(msg)
		return m, cmd
	}
	if m.state == StateEditing {
		return m.forwardToInput(msg)
	}
	return m, nil
}

// apply handles a change notification. Changes the form made itself only
// refresh the validity indicator.
func (m *Model) apply(n document.ChangeNotification) {
	if n.Seq != 0 && n.Seq < m.lastSeq {
		return
	}
	m.lastSeq = n.Seq
	m.valid = n.Valid
	m.err = n.Err
	if n.Origin == document.OriginForm {
		return
	}
	m.render(n.Tree)
}

func (m *Model) renderSnapshot() {
	snap := m.doc.Snapshot()
	m.lastSeq = snap.Seq
	m.valid = snap.Valid
	m.err = snap.Err
	m.render(snap.Tree)
}

// render brings rows and bindings in line with tree. A changed path set
// rebuilds everything; otherwise only bindings whose kind or value changed
// are touched and the binding being edited is left alone.
func (m *Model) render(tree *document.Node) {
	m.suspended = true
	defer func() { m.suspended = false }()

	focusPath := m.CursorPath()
	editing := m.state == StateEditing
	var editPos int
	if b, ok := m.bindings[focusPath]; ok && editing {
		editPos = b.Input.Position()
	}

	paths := document.Paths(tree)
	if len(m.rows) == 0 || !samePathSet(paths, m.paths) {
		m.rebuild(tree, paths)
		logging.FormDebug("full rebuild: %d rows", len(m.rows))
	} else {
		n := m.incremental(tree, focusPath, editing)
		logging.FormDebug("incremental update: %d bindings touched", n)
	}

	m.restoreFocus(focusPath, editing, editPos)
}

func (m *Model) rebuild(tree *document.Node, paths []string) {
	m.last = RenderFull
	m.rows = buildRows(tree)
	m.paths = paths
	m.bindings = make(map[string]*Binding, len(m.rows))
	for _, r := range m.rows {
		if r.Container() {
			continue
		}
		v, _ := document.Resolve(tree, r.Path)
		m.bindings[r.Path] = m.bind(r.Path, v)
	}
}

func (m *Model) incremental(tree *document.Node, focusPath string, editing bool) int {
	m.last = RenderIncremental
	touched := 0
	for i := range m.rows {
		r := &m.rows[i]
		v, ok := document.Resolve(tree, r.Path)
		if !ok {
			continue
		}
		r.Size = v.Len()
		if editing && r.Path == focusPath {
			continue
		}
		b, bound := m.bindings[r.Path]
		switch {
		case v.Kind() != r.Kind:
			r.Kind = v.Kind()
			delete(m.bindings, r.Path)
			if !r.Container() {
				m.bindings[r.Path] = m.bind(r.Path, v)
			}
			touched++
		case bound && !b.Matches(v):
			b.set(v)
			touched++
		}
	}
	return touched
}

func (m *Model) bind(path string, v *document.Node) *Binding {
	m.nextID++
	b := newBinding(m.nextID, path, v)
	b.Input.Width = m.inputWidth()
	return b
}

func (m *Model) restoreFocus(path string, editing bool, pos int) {
	idx := -1
	for i, r := range m.rows {
		if r.Path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		if m.cursor >= len(m.rows) {
			m.cursor = len(m.rows) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.state = StateIdle
		m.scroll()
		return
	}
	m.cursor = idx
	if editing {
		b, ok := m.bindings[path]
		if ok && b.Editable() {
			b.Input.Focus()
			b.Input.SetCursor(pos)
		} else {
			m.state = StateIdle
		}
	}
	m.scroll()
}

func (m Model) updateIdle(msg tea.KeyMsg) (Model, tea.Cmd) {
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = max(len(m.rows)-1, 0)
	case key.Matches(msg, m.keys.Toggle):
		m.toggle()
	case key.Matches(msg, m.keys.Edit):
		return m.startEditing()
	case key.Matches(msg, m.keys.Add):
		return m.add()
	case key.Matches(msg, m.keys.AddRoot):
		return m.beginAddProperty("")
	case key.Matches(msg, m.keys.Remove):
		m.remove()
	case key.Matches(msg, m.keys.CopyPath):
		m.copyPath()
	}
	m.scroll()
	return m, nil
}

func (m Model) startEditing() (Model, tea.Cmd) {
	path := m.CursorPath()
	b, ok := m.bindings[path]
	if !ok {
		return m, nil
	}
	switch {
	case b.Kind == document.KindBool:
		m.toggle()
		return m, nil
	case b.Editable():
		m.state = StateEditing
		b.Input.CursorEnd()
		return m, b.Input.Focus()
	}
	if b.Multiline() {
		m.status = "multi-line text is edited in the text pane"
		return m, nil
	}
	m.status = "null values are read-only here; edit the text to give them a type"
	return m, nil
}

func (m *Model) stopEditing() {
	if b, ok := m.bindings[m.CursorPath()]; ok {
		b.Input.Blur()
	}
	m.state = StateIdle
}

func (m Model) updateEditing(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Done), key.Matches(msg, m.keys.Cancel):
		m.stopEditing()
		return m, nil
	case msg.Type == tea.KeyUp, msg.Type == tea.KeyDown:
		m.stopEditing()
		return m.updateIdle(msg)
	}
	return m.forwardToInput(msg)
}

// forwardToInput feeds msg to the active input and pushes the new value
// when it changed.
func (m Model) forwardToInput(msg tea.Msg) (Model, tea.Cmd) {
	b, ok := m.bindings[m.CursorPath()]
	if !ok || !b.Editable() {
		m.state = StateIdle
		return m, nil
	}
	before := b.Input.Value()
	var cmd tea.Cmd
	b.Input, cmd = b.Input.Update(msg)
	if b.Input.Value() != before {
		b.typed()
		m.push(b)
	}
	return m, cmd
}

// push sends the binding's typed value to the document.
func (m *Model) push(b *Binding) {
	if m.suspended {
		return
	}
	v, err := b.Typed()
	if err != nil {
		m.status = fmt.Sprintf("%q is not a number", b.Input.Value())
		return
	}
	m.status = ""
	m.doc.UpdatePath(b.Path, v, document.OriginForm, true)
}

func (m *Model) toggle() {
	b, ok := m.bindings[m.CursorPath()]
	if !ok || b.Kind != document.KindBool {
		return
	}
	b.On = !b.On
	m.push(b)
}

func (m Model) add() (Model, tea.Cmd) {
	if len(m.rows) == 0 {
		return m.beginAddProperty("")
	}
	r := m.rows[m.cursor]
	switch r.Kind {
	case document.KindArray:
		m.doc.AddArrayItem(r.Path, document.String(""), document.OriginForm, true)
		m.renderSnapshot()
		m.status = "added item to " + r.Path
		logging.Form("added item to %s", r.Path)
		return m, nil
	case document.KindMap:
		return m.beginAddProperty(r.Path)
	}
	m.status = "select a map or list to add to"
	return m, nil
}

func (m Model) beginAddProperty(path string) (Model, tea.Cmd) {
	m.adding = true
	m.addPath = path
	m.keyInput.Reset()
	return m, m.keyInput.Focus()
}

func (m Model) updateAdding(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.adding = false
		m.keyInput.Blur()
		return m, nil
	case msg.Type == tea.KeyEnter:
		name := strings.TrimSpace(m.keyInput.Value())
		m.adding = false
		m.keyInput.Blur()
		if name == "" {
			m.status = "property name is empty"
			return m, nil
		}
		m.doc.AddObjectProperty(m.addPath, name, document.String(""), document.OriginForm, true)
		m.renderSnapshot()
		m.SelectPath(document.JoinKey(m.addPath, name))
		m.status = "added " + document.JoinKey(m.addPath, name)
		logging.Form("added property %s", document.JoinKey(m.addPath, name))
		return m, nil
	}
	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

func (m *Model) remove() {
	if len(m.rows) == 0 {
		return
	}
	r := m.rows[m.cursor]
	if r.InArray {
		m.doc.RemoveArrayItem(r.Parent, r.Index, document.OriginForm, true)
	} else {
		m.doc.RemoveObjectProperty(r.Parent, r.Key, document.OriginForm, true)
	}
	m.renderSnapshot()
	m.status = "removed " + r.Path
	logging.Form("removed %s", r.Path)
}

// copyPath puts the selected row's template placeholder on the clipboard.
func (m *Model) copyPath() {
	path := m.CursorPath()
	if path == "" {
		return
	}
	ph := template.Placeholder(path)
	if err := clipboardWriteAll(ph); err != nil {
		logging.Get(logging.CategoryForm).Warn("clipboard: %v", err)
		m.status = "clipboard unavailable: " + ph
		return
	}
	m.status = "copied " + ph
}

func (m Model) inputWidth() int {
	return max(m.width/2, 10)
}

// scroll keeps the cursor inside the visible window.
func (m *Model) scroll() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) listHeight() int {
	return max(m.height-2, 1)
}

// View renders the form.
func (m Model) View() string {
	var sb strings.Builder

	if len(m.rows) == 0 {
		sb.WriteString(m.styles.Muted.Render("(empty document, press A to add a property)"))
		sb.WriteString("\n")
	}
	end := min(m.offset+m.listHeight(), len(m.rows))
	for i := m.offset; i < end; i++ {
		sb.WriteString(m.renderRow(i))
		sb.WriteString("\n")
	}

	if m.adding {
		sb.WriteString(m.keyInput.View())
		sb.WriteString("\n")
	}
	sb.WriteString(m.footer())
	return sb.String()
}

func (m Model) renderRow(i int) string {
	r := m.rows[i]
	marker := "  "
	if i == m.cursor && m.focused {
		marker = m.styles.Cursor.Render("> ")
	}
	indent := strings.Repeat("  ", r.Depth)

	label := m.styles.Key.Render(r.Label)
	if r.InArray {
		label = m.styles.Index.Render(r.Label)
	}

	var control string
	switch r.Kind {
	case document.KindMap:
		control = m.styles.Container.Render(fmt.Sprintf("{%d}  [a] add property  [d] remove", r.Size))
	case document.KindArray:
		control = m.styles.Container.Render(fmt.Sprintf("[%d]  [a] add item  [d] remove", r.Size))
	case document.KindNull:
		control = m.styles.Null.Render("null")
	default:
		control = m.renderControl(m.bindings[r.Path], i == m.cursor && m.state == StateEditing)
	}
	return marker + indent + label + ": " + control
}

func (m Model) renderControl(b *Binding, editing bool) string {
	if b == nil {
		return ""
	}
	switch b.Kind {
	case document.KindBool:
		if b.On {
			return m.styles.Bool.Render("[x] true")
		}
		return m.styles.Bool.Render("[ ] false")
	case document.KindNumber:
		if editing {
			return b.Input.View()
		}
		return m.styles.Number.Render(b.Input.Value())
	}
	if editing {
		return b.Input.View()
	}
	v := b.Raw()
	if first, _, multi := strings.Cut(v, "\n"); multi {
		v = first + " …"
	}
	return m.styles.String.Render(v)
}

func (m Model) footer() string {
	indicator := m.styles.Valid.Render("✓ valid")
	if !m.valid {
		msg := "invalid"
		if m.err != nil {
			msg = firstLine(m.err.Error())
		}
		indicator = m.styles.Invalid.Render("✗ " + msg)
	} else if m.err != nil {
		indicator = m.styles.Status.Render("! " + firstLine(m.err.Error()))
	}
	if m.status != "" {
		return indicator + "  " + m.styles.Status.Render(m.status)
	}
	return indicator
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
