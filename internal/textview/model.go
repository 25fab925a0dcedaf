// Package textview edits a scene's serialized text directly, with a live
// syntax overlay and cursor-preserving replacement when the document is
// changed elsewhere.
package textview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"promptscene/internal/document"
	"promptscene/internal/logging"
)

// Editor is the document surface the text view pushes into.
type Editor interface {
	Snapshot() document.ChangeNotification
	SetText(text string, origin document.Origin, immediate bool)
}

// State is the view's interaction state.
type State int

const (
	StateIdle State = iota
	StateEditing
)

// Model is the text surface view.
type Model struct {
	doc    Editor
	buf    *Buffer
	keys   KeyMap
	styles Styles

	state     State
	suspended bool
	focused   bool

	valid    bool
	err      error
	lastSeq  uint64
	replaced int

	offset int
	width  int
	height int
}

// New builds a text view showing doc's current text.
func New(doc Editor) Model {
	snap := doc.Snapshot()
	return Model{
		doc:     doc,
		buf:     NewBuffer(snap.Text),
		keys:    DefaultKeyMap(),
		styles:  DefaultStyles(),
		valid:   snap.Valid,
		err:     snap.Err,
		lastSeq: snap.Seq,
		width:   60,
		height:  20,
	}
}

// SetStyles replaces the styles.
func (m *Model) SetStyles(s Styles) { m.styles = s }

// Keys returns the key bindings.
func (m Model) Keys() KeyMap { return m.keys }

// SetSize sets the pane size.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.scroll()
}

// Focus gives the view keyboard focus; Blur takes it away and ends editing.
func (m *Model) Focus() { m.focused = true }

func (m *Model) Blur() {
	m.focused = false
	m.state = StateIdle
}

// Focused reports whether the view has keyboard focus.
func (m Model) Focused() bool { return m.focused }

// State returns the interaction state.
func (m Model) State() State { return m.state }

// Suspended reports whether a programmatic update is being applied.
func (m Model) Suspended() bool { return m.suspended }

// Text returns the displayed text.
func (m Model) Text() string { return m.buf.String() }

// Cursor returns the cursor offset in runes.
func (m Model) Cursor() int { return m.buf.Cursor() }

// Selection returns the ordered selection bounds.
func (m Model) Selection() (start, end int) { return m.buf.Selection() }

// Select sets the selection without treating it as an edit.
func (m *Model) Select(anchor, cursor int) {
	m.buf.Select(anchor, cursor)
	m.scroll()
}

// Replacements counts how often a notification replaced the displayed text.
func (m Model) Replacements() int { return m.replaced }

// Valid reports the validity indicator; Err the error it shows.
func (m Model) Valid() bool { return m.valid }
func (m Model) Err() error  { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case document.ChangeNotification:
		m.apply(msg)
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if m.focused {
			m.handleKey(msg)
		}
	}
	return m, nil
}

// apply handles a change notification. The view's own edits only refresh
// the validity indicator; other origins replace the text when it differs.
func (m *Model) apply(n document.ChangeNotification) {
	if n.Seq != 0 && n.Seq < m.lastSeq {
		return
	}
	m.lastSeq = n.Seq
	m.valid = n.Valid
	m.err = n.Err
	if n.Origin == document.OriginText || n.Text == m.buf.String() {
		return
	}

	m.suspended = true
	defer func() { m.suspended = false }()

	m.buf.Replace(n.Text)
	m.replaced++
	m.scroll()
	logging.TextDebug("replaced text from %s change (%d runes)", originName(n.Origin), m.buf.Len())
}

func originName(o document.Origin) string {
	if o == document.OriginNone {
		return "unknown"
	}
	return string(o)
}

func (m *Model) handleKey(msg tea.KeyMsg) {
	before := m.buf.String()
	b := m.buf
	page := max(m.textHeight()-1, 1)

	switch {
	case key.Matches(msg, m.keys.Cancel):
		b.ClearSelection()
		m.state = StateIdle
		return
	case key.Matches(msg, m.keys.Left):
		b.Move(-1, false)
	case key.Matches(msg, m.keys.Right):
		b.Move(1, false)
	case key.Matches(msg, m.keys.Up):
		b.MoveLine(-1, false)
	case key.Matches(msg, m.keys.Down):
		b.MoveLine(1, false)
	case key.Matches(msg, m.keys.PageUp):
		b.MoveLine(-page, false)
	case key.Matches(msg, m.keys.PageDown):
		b.MoveLine(page, false)
	case key.Matches(msg, m.keys.Home):
		b.LineStart(false)
	case key.Matches(msg, m.keys.End):
		b.LineEnd(false)
	case key.Matches(msg, m.keys.SelLeft):
		b.Move(-1, true)
	case key.Matches(msg, m.keys.SelRight):
		b.Move(1, true)
	case key.Matches(msg, m.keys.SelUp):
		b.MoveLine(-1, true)
	case key.Matches(msg, m.keys.SelDown):
		b.MoveLine(1, true)
	case key.Matches(msg, m.keys.SelHome):
		b.LineStart(true)
	case key.Matches(msg, m.keys.SelEnd):
		b.LineEnd(true)
	case key.Matches(msg, m.keys.SelectAll):
		b.SelectAll()
	case key.Matches(msg, m.keys.Indent):
		b.Indent()
	case key.Matches(msg, m.keys.Outdent):
		b.Outdent()
	case key.Matches(msg, m.keys.Newline):
		b.Newline()
	case key.Matches(msg, m.keys.Backspace):
		b.Backspace()
	case key.Matches(msg, m.keys.Delete):
		b.DeleteForward()
	case msg.Type == tea.KeySpace:
		b.Insert(" ")
	case msg.Type == tea.KeyRunes:
		b.Insert(string(msg.Runes))
	default:
		return
	}

	m.state = StateEditing
	m.scroll()
	if m.buf.String() != before {
		m.push()
	}
}

// push sends the buffer to the document unless a programmatic update is in
// flight.
func (m *Model) push() {
	if m.suspended {
		return
	}
	m.doc.SetText(m.buf.String(), document.OriginText, false)
}

func (m *Model) scroll() {
	line, _ := m.buf.LineCol(m.buf.Cursor())
	h := m.textHeight()
	if line < m.offset {
		m.offset = line
	}
	if line >= m.offset+h {
		m.offset = line - h + 1
	}
	m.offset = max(m.offset, 0)
}

func (m Model) textHeight() int {
	return max(m.height-1, 1)
}

// View renders the visible lines, the cursor and selection, and a footer.
func (m Model) View() string {
	var sb strings.Builder

	lines := m.buf.Lines()
	gutter := len(fmt.Sprint(len(lines)))
	starts := make([]int, len(lines))
	pos := 0
	for i, l := range lines {
		starts[i] = pos
		pos += len([]rune(l)) + 1
	}

	end := min(m.offset+m.textHeight(), len(lines))
	for i := m.offset; i < end; i++ {
		sb.WriteString(m.styles.Gutter.Render(fmt.Sprintf("%*d ", gutter, i+1)))
		sb.WriteString(m.renderLine(lines[i], starts[i]))
		sb.WriteString("\n")
	}
	sb.WriteString(m.footer())
	return sb.String()
}

type runStyle struct {
	class    Class
	selected bool
	cursor   bool
}

// renderLine styles one line by grouping runes that share a class,
// selection state and cursor state.
func (m Model) renderLine(line string, start int) string {
	runes := []rune(line)
	classes := Classify(line)
	selStart, selEnd := m.buf.Selection()
	cur := m.buf.Cursor()

	styleAt := func(i int) runStyle {
		off := start + i
		rs := runStyle{selected: off >= selStart && off < selEnd, cursor: m.focused && off == cur}
		if i < len(classes) {
			rs.class = classes[i]
		}
		return rs
	}

	var sb strings.Builder
	for i := 0; i < len(runes); {
		rs := styleAt(i)
		j := i + 1
		for j < len(runes) && styleAt(j) == rs {
			j++
		}
		sb.WriteString(m.style(rs).Render(string(runes[i:j])))
		i = j
	}
	if m.focused && cur == start+len(runes) {
		sb.WriteString(m.styles.Cursor.Render(" "))
	}
	return sb.String()
}

func (m Model) style(rs runStyle) lipgloss.Style {
	st := m.styles.class(rs.class)
	switch {
	case rs.cursor:
		st = st.Inherit(m.styles.Cursor)
	case rs.selected:
		st = st.Inherit(m.styles.Selection)
	}
	return st
}

func (m Model) footer() string {
	line, col := m.buf.LineCol(m.buf.Cursor())
	pos := m.styles.Gutter.Render(fmt.Sprintf("Ln %d, Col %d", line+1, col+1))

	if m.valid {
		return m.styles.Valid.Render("✓ valid") + "  " + pos
	}
	msg := "invalid"
	if m.err != nil {
		msg, _, _ = strings.Cut(m.err.Error(), "\n")
	}
	return m.styles.Invalid.Render("✗ "+msg) + "  " + pos
}
