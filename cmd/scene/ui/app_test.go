package ui

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptscene/internal/document"
	"promptscene/internal/template"
	"promptscene/internal/watch"
)

func newDoc(t *testing.T, text string) *document.Manager {
	t.Helper()
	doc := document.NewManager(text, document.WithDebounce(time.Hour))
	t.Cleanup(doc.Close)
	return doc
}

func newApp(t *testing.T, opts Options) Model {
	t.Helper()
	styles := NewStyles(LightTheme())
	opts.Styles = &styles
	m := New(opts)
	t.Cleanup(m.Close)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(Model)
}

// drain feeds every queued notification to the model.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	for m.fwd.Pending() > 0 {
		msg := m.fwd.Next()()
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "ctrl+o":
		return tea.KeyMsg{Type: tea.KeyCtrlO}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	case "ctrl+q":
		return tea.KeyMsg{Type: tea.KeyCtrlQ}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func TestExternalChangeReachesBothPanes(t *testing.T) {
	doc := newDoc(t, "a: 1\n")
	m := newApp(t, Options{Doc: doc})

	doc.SetText("a: 1\nb: two\n", document.OriginExternal, true)
	m = drain(t, m)

	assert.Equal(t, "a: 1\nb: two\n", m.text.Text())
	_, ok := m.form.Binding("b")
	assert.True(t, ok, "form should have a row for b")
	assert.False(t, m.Dirty())
}

func TestFormEditUpdatesText(t *testing.T) {
	doc := newDoc(t, "a: 1\n")
	m := newApp(t, Options{Doc: doc})

	// The form writes through the manager; the text pane learns about it
	// from the forwarded notification.
	doc.UpdatePath("a", document.Number(2), document.OriginForm, true)
	m = drain(t, m)

	assert.Equal(t, "a: 2\n", m.text.Text())
	assert.True(t, m.Dirty())
}

func TestInvalidTextShowsInHeader(t *testing.T) {
	doc := newDoc(t, "a: 1\n")
	m := newApp(t, Options{Doc: doc})

	doc.SetText("a: [\n", document.OriginText, true)
	m = drain(t, m)

	assert.Contains(t, m.View(), "✗ invalid")
}

func TestSwitchPane(t *testing.T) {
	m := newApp(t, Options{Doc: newDoc(t, "a: 1\n")})
	require.Equal(t, PaneForm, m.Focus())
	assert.True(t, m.form.Focused())

	m = press(m, "ctrl+o")
	assert.Equal(t, PaneText, m.Focus())
	assert.True(t, m.text.Focused())
	assert.False(t, m.form.Focused())

	m = press(m, "ctrl+o")
	assert.Equal(t, PaneForm, m.Focus())
}

func TestTypingInTextPane(t *testing.T) {
	doc := newDoc(t, "")
	m := newApp(t, Options{Doc: doc})
	m = press(m, "ctrl+o", "a", ":", " ", "1")

	// Typed text is stored right away and parsed after the debounce.
	assert.Equal(t, "a: 1", doc.Text())
	doc.Flush()
	m = drain(t, m)

	_, ok := m.form.Binding("a")
	assert.True(t, ok)
	assert.Equal(t, "a: 1", m.text.Text())
}

func TestSaveWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	doc := newDoc(t, "")
	fsync, err := watch.New(path, doc)
	require.NoError(t, err)

	m := newApp(t, Options{Doc: doc, File: fsync})
	doc.UpdatePath("model", document.String("gpt"), document.OriginForm, true)
	m = drain(t, m)
	require.True(t, m.Dirty())

	m = press(m, "ctrl+s")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "model: gpt\n", string(data))
	assert.Equal(t, "saved scene.yaml", m.Status())
	assert.False(t, m.Dirty())
}

func TestSaveWithoutTarget(t *testing.T) {
	m := newApp(t, Options{Doc: newDoc(t, "a: 1\n")})
	m = press(m, "ctrl+s")
	assert.Equal(t, "nowhere to save", m.Status())
}

func TestPreview(t *testing.T) {
	doc := newDoc(t, "name: Ada\n")
	p, err := template.NewPreviewer(template.PreviewOptions{Width: 40, Style: "notty"})
	require.NoError(t, err)

	m := newApp(t, Options{Doc: doc, Template: "Hello {{name}} {{missing}}", Previewer: p})
	m = press(m, "ctrl+p")
	require.True(t, m.showPreview)
	assert.Contains(t, m.preview.View(), "Hello Ada")
	assert.Equal(t, []string{"missing"}, m.unresolved)
	assert.Contains(t, m.View(), "Preview (1 unresolved)")

	doc.UpdatePath("name", document.String("Grace"), document.OriginForm, true)
	m = drain(t, m)
	assert.Contains(t, m.preview.View(), "Hello Grace")

	m = press(m, "ctrl+p")
	assert.False(t, m.showPreview)
}

func TestPreviewWithoutTemplate(t *testing.T) {
	m := newApp(t, Options{Doc: newDoc(t, "a: 1\n")})
	m = press(m, "ctrl+p")
	assert.False(t, m.showPreview)
	assert.Contains(t, m.Status(), "no template")
}

func TestQuitClosesForwarder(t *testing.T) {
	doc := newDoc(t, "a: 1\n")
	m := newApp(t, Options{Doc: doc})

	_, cmd := m.Update(keyMsg("ctrl+q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Nil(t, m.fwd.Next()())

	// Later changes are not queued.
	doc.SetText("a: 2\n", document.OriginExternal, true)
	assert.Equal(t, 0, m.fwd.Pending())
}

func TestViewTooSmall(t *testing.T) {
	m := newApp(t, Options{Doc: newDoc(t, "a: 1\n")})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	assert.Contains(t, next.(Model).View(), "Terminal too small")
}

func TestViewShowsBothPanes(t *testing.T) {
	m := newApp(t, Options{Doc: newDoc(t, "model: gpt\n")})
	view := m.View()
	assert.Contains(t, view, "Form")
	assert.Contains(t, view, "YAML")
	assert.Contains(t, view, "untitled")
	assert.GreaterOrEqual(t, strings.Count(view, "model"), 2)
}

func TestForwarderKeepsOrder(t *testing.T) {
	f := NewForwarder()
	defer f.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 50; i++ {
			f.OnChange(document.ChangeNotification{Seq: i})
		}
	}()

	for want := uint64(1); want <= 50; want++ {
		msg := f.Next()()
		n, ok := msg.(document.ChangeNotification)
		require.True(t, ok)
		require.Equal(t, want, n.Seq)
	}
	wg.Wait()
}

func TestForwarderCloseReleasesWaiter(t *testing.T) {
	f := NewForwarder()
	done := make(chan tea.Msg)
	go func() { done <- f.Next()() }()

	f.Close()
	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Close")
	}
	f.Close()
}
