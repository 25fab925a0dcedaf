package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"promptscene/internal/document"
	"promptscene/internal/formview"
	"promptscene/internal/logging"
	"promptscene/internal/store"
	"promptscene/internal/template"
	"promptscene/internal/textview"
	"promptscene/internal/watch"
)

// Pane identifies which side of the editor has focus.
type Pane int

const (
	PaneForm Pane = iota
	PaneText
)

// storeTimeout bounds a save to the scene store.
const storeTimeout = 5 * time.Second

// Options wires the editor to its document and optional collaborators.
type Options struct {
	Doc *document.Manager

	// File is the synced scene file; ctrl+s writes it. May be nil.
	File *watch.FileSync

	// Store and SceneName, when both set, make ctrl+s also save the scene
	// to the store.
	Store     *store.Store
	SceneName string

	// Template is filled from the document in the preview pane.
	Template  string
	Previewer *template.Previewer

	Styles *Styles
}

// Model is the split-pane scene editor.
type Model struct {
	opts   Options
	doc    *document.Manager
	fwd    *Forwarder
	sub    *document.Subscription
	keys   KeyMap
	styles Styles
	help   help.Model

	form  formview.Model
	text  textview.Model
	focus Pane

	preview     viewport.Model
	showPreview bool
	unresolved  []string

	valid  bool
	status string
	dirty  bool

	layout LayoutConfig
	ready  bool
}

// New builds the editor over opts.Doc and subscribes to it. Call Close when
// the program exits.
func New(opts Options) Model {
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}
	m := Model{
		opts:    opts,
		doc:     opts.Doc,
		fwd:     NewForwarder(),
		keys:    DefaultKeyMap(),
		styles:  styles,
		help:    help.New(),
		form:    formview.New(opts.Doc),
		text:    textview.New(opts.Doc),
		preview: viewport.New(40, 10),
		valid:   opts.Doc.Valid(),
		layout:  NewLayoutConfig(MinimumTerminalWidth, MinimumTerminalHeight),
	}
	m.sub = opts.Doc.Subscribe(m.fwd)
	m.form.Focus()
	m.text.Blur()
	m.resize()
	return m
}

// Close unsubscribes from the document and stops notification delivery.
func (m Model) Close() {
	m.sub.Unsubscribe()
	m.fwd.Close()
}

// Focus returns the focused pane.
func (m Model) Focus() Pane { return m.focus }

// Status returns the footer status message.
func (m Model) Status() string { return m.status }

// Dirty reports whether the document changed since the last save or load.
func (m Model) Dirty() bool { return m.dirty }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.fwd.Next()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case document.ChangeNotification:
		m.apply(msg)
		return m, m.fwd.Next()

	case tea.WindowSizeMsg:
		m.layout = NewLayoutConfig(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.SwitchPane):
			m.switchPane()
			return m, nil
		case key.Matches(msg, m.keys.Save):
			m.save()
			return m, nil
		case key.Matches(msg, m.keys.Preview):
			m.togglePreview()
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.resize()
			return m, nil
		}
	}

	return m.updateFocused(msg)
}

// updateFocused hands msg to the focused pane.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == PaneForm {
		m.form, cmd = m.form.Update(msg)
	} else {
		m.text, cmd = m.text.Update(msg)
	}
	return m, cmd
}

// apply sends a notification to both panes. Each pane skips echoes of its
// own edits.
func (m *Model) apply(n document.ChangeNotification) {
	m.form, _ = m.form.Update(n)
	m.text, _ = m.text.Update(n)
	m.valid = n.Valid

	switch n.Origin {
	case document.OriginFile:
		m.dirty = false
		m.status = "reloaded from disk"
	case document.OriginExternal:
	default:
		m.dirty = true
	}
	if m.showPreview {
		m.refreshPreview()
	}
	logging.Get(logging.CategoryDocument).Debug("editor applied change %d from %q", n.Seq, n.Origin)
}

func (m *Model) switchPane() {
	if m.focus == PaneForm {
		m.focus = PaneText
		m.form.Blur()
		m.text.Focus()
		return
	}
	m.focus = PaneForm
	m.text.Blur()
	m.form.Focus()
}

// save flushes typed text and writes the document to the file and store.
func (m *Model) save() {
	m.doc.Flush()

	var done []string
	if m.opts.File != nil {
		if err := m.opts.File.Save(); err != nil {
			m.status = "save failed: " + err.Error()
			return
		}
		done = append(done, filepath.Base(m.opts.File.Path()))
	}
	if m.opts.Store != nil && m.opts.SceneName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if _, err := m.opts.Store.SaveDocument(ctx, m.opts.SceneName, m.doc); err != nil {
			m.status = "store save failed: " + err.Error()
			return
		}
		done = append(done, "scene "+m.opts.SceneName)
	}
	if len(done) == 0 {
		m.status = "nowhere to save"
		return
	}
	m.dirty = false
	m.status = "saved " + strings.Join(done, " and ")
}

func (m *Model) togglePreview() {
	if m.opts.Previewer == nil {
		m.status = "no template loaded (use --template)"
		return
	}
	m.showPreview = !m.showPreview
	if !m.showPreview {
		return
	}
	// The preview replaces the text pane.
	if m.focus == PaneText {
		m.switchPane()
	}
	m.refreshPreview()
}

func (m *Model) refreshPreview() {
	out, res, err := m.opts.Previewer.Preview(m.opts.Template, m.doc.Tree())
	if err != nil {
		m.preview.SetContent(m.styles.Error.Render(err.Error()))
		return
	}
	m.unresolved = res.Unresolved
	m.preview.SetContent(out)
}

// resize recomputes the pane sizes from the layout.
func (m *Model) resize() {
	left, right := m.layout.PaneWidths()
	height := m.layout.PaneHeight()
	if m.help.ShowAll {
		height = max(height-2, 3)
	}
	lw, lh := InnerSize(left, height)
	rw, rh := InnerSize(right, height)
	m.form.SetSize(lw, lh)
	m.text.SetSize(rw, rh)
	m.preview.Width = rw
	m.preview.Height = rh
	m.help.Width = m.layout.TerminalWidth
}

// View implements tea.Model.
func (m Model) View() string {
	if m.ready && m.layout.TooSmall() {
		return m.styles.Warning.Render(fmt.Sprintf(
			"Terminal too small (%dx%d); need at least %dx%d.",
			m.layout.TerminalWidth, m.layout.TerminalHeight,
			MinimumTerminalWidth, MinimumTerminalHeight))
	}

	left, right := m.layout.PaneWidths()
	height := m.layout.PaneHeight()
	if m.help.ShowAll {
		height = max(height-2, 3)
	}

	formPane := m.pane("Form", m.form.View(), left, height, m.focus == PaneForm)
	var rightPane string
	if m.showPreview {
		title := "Preview"
		if n := len(m.unresolved); n > 0 {
			title = fmt.Sprintf("Preview (%d unresolved)", n)
		}
		rightPane = m.pane(title, m.preview.View(), right, height, false)
	} else {
		rightPane = m.pane("YAML", m.text.View(), right, height, m.focus == PaneText)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		lipgloss.JoinHorizontal(lipgloss.Top, formPane, rightPane),
		m.footer(),
	)
}

func (m Model) pane(title, body string, width, height int, focused bool) string {
	style, titleStyle := m.styles.Pane, m.styles.PaneTitle
	if focused {
		style, titleStyle = m.styles.FocusedPane, m.styles.FocusedTitle
	}
	content := titleStyle.Render(title) + "\n" + body
	return style.
		Width(max(width-PaneBorderWidth, 1)).
		Height(max(height-PaneBorderWidth, 1)).
		MaxHeight(height).
		Render(content)
}

func (m Model) header() string {
	name := "untitled"
	if m.opts.File != nil {
		name = filepath.Base(m.opts.File.Path())
	}
	if m.opts.SceneName != "" {
		name += "  [" + m.opts.SceneName + "]"
	}
	if m.dirty {
		name += " •"
	}
	state := m.styles.Success.Render("✓ valid")
	if !m.valid {
		state = m.styles.Error.Render("✗ invalid")
	}
	return m.styles.Header.Render("promptscene") + " " + name + "  " + state
}

func (m Model) footer() string {
	status := m.status
	if status == "" {
		status = " "
	}
	return m.styles.Footer.Render(status) + "\n" + m.help.View(m.helpKeys())
}

func (m Model) helpKeys() helpKeys {
	var pane []key.Binding
	if m.focus == PaneForm {
		pane = m.form.Keys().ShortHelp()
	} else {
		pane = m.text.Keys().ShortHelp()
	}
	return helpKeys{app: m.keys, pane: pane}
}

// helpKeys combines the editor's bindings with the focused pane's.
type helpKeys struct {
	app  KeyMap
	pane []key.Binding
}

func (h helpKeys) ShortHelp() []key.Binding {
	return append(h.app.ShortHelp(), h.pane...)
}

func (h helpKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{h.app.ShortHelp(), h.pane}
}
