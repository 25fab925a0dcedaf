package textview

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptscene/internal/document"
)

type inbox struct {
	mu      sync.Mutex
	pending []document.ChangeNotification
}

func (b *inbox) OnChange(n document.ChangeNotification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, n)
}

func (b *inbox) drain(m Model) Model {
	b.mu.Lock()
	msgs := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, n := range msgs {
		m, _ = m.Update(n)
	}
	return m
}

// setup uses a long debounce so tests decide when text is converted.
func setup(t *testing.T, text string) (*document.Manager, Model, *inbox) {
	t.Helper()
	doc := document.NewManager(text, document.WithDebounce(time.Hour))
	t.Cleanup(doc.Close)
	box := &inbox{}
	doc.Subscribe(box)
	m := New(doc)
	m.Focus()
	m.SetSize(80, 20)
	return doc, m, box
}

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(m Model, msgs ...tea.KeyMsg) Model {
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

// fakeEditor records pushes without converting anything.
type fakeEditor struct {
	snap   document.ChangeNotification
	pushes []string
}

func (f *fakeEditor) Snapshot() document.ChangeNotification { return f.snap }

func (f *fakeEditor) SetText(text string, origin document.Origin, immediate bool) {
	f.pushes = append(f.pushes, text)
}

func TestTypingPushesDeferredText(t *testing.T) {
	doc, m, box := setup(t, "model: gpt\n")

	m = press(m, tea.KeyMsg{Type: tea.KeyEnd}, keyRunes("-4"))
	assert.Equal(t, "model: gpt-4\n", m.Text())
	assert.Equal(t, StateEditing, m.State())
	assert.Equal(t, "model: gpt-4\n", doc.Text())

	doc.Flush()
	v, ok := document.Resolve(doc.Tree(), "model")
	require.True(t, ok)
	assert.Equal(t, "gpt-4", v.Str())

	m = box.drain(m)
	assert.Equal(t, 0, m.Replacements())
	assert.True(t, m.Valid())
}

func TestOwnEditsOnlyUpdateValidity(t *testing.T) {
	doc, m, box := setup(t, "model: gpt\n")

	m = press(m, tea.KeyMsg{Type: tea.KeyEnd}, keyRunes(": x"))
	doc.Flush()
	m = box.drain(m)

	assert.False(t, m.Valid())
	assert.Error(t, m.Err())
	assert.Equal(t, "model: gpt: x\n", m.Text(), "invalid text stays on screen")
	assert.Equal(t, 0, m.Replacements())
	assert.Contains(t, m.View(), "✗")
}

func TestFormEditReplacesTextAndKeepsCursor(t *testing.T) {
	doc, m, box := setup(t, "model: gpt\ntemp: 1\n")
	m.Select(2, 14)

	doc.UpdatePath("temp", document.Number(2), document.OriginForm, true)
	m = box.drain(m)

	assert.Equal(t, "model: gpt\ntemp: 2\n", m.Text())
	assert.Equal(t, 1, m.Replacements())
	s, e := m.Selection()
	assert.Equal(t, [2]int{2, 14}, [2]int{s, e})
	assert.False(t, m.Suspended())
	assert.Equal(t, StateIdle, m.State())
}

func TestMatchingTextIsNotReplaced(t *testing.T) {
	doc, m, _ := setup(t, "model: gpt\n")
	m.Select(3, 3)

	n := doc.Snapshot()
	n.Origin = document.OriginForm
	n.Seq += 10
	m, _ = m.Update(n)

	assert.Equal(t, 0, m.Replacements())
	assert.Equal(t, 3, m.Cursor())
}

func TestReplacementClampsCursor(t *testing.T) {
	doc, m, box := setup(t, "model: gpt\ntemp: 1\n")
	m.Select(19, 19)

	doc.SetText("a: 1\n", document.OriginFile, true)
	m = box.drain(m)

	assert.Equal(t, "a: 1\n", m.Text())
	assert.Equal(t, 5, m.Cursor())
}

func TestReplacementDoesNotPushBack(t *testing.T) {
	ed := &fakeEditor{snap: document.ChangeNotification{Text: "a: 1\n", Valid: true, Seq: 1}}
	m := New(ed)
	m.Focus()

	m, _ = m.Update(document.ChangeNotification{Text: "a: 2\n", Valid: true, Origin: document.OriginFile, Seq: 2})
	assert.Equal(t, "a: 2\n", m.Text())
	assert.Empty(t, ed.pushes)

	m = press(m, tea.KeyMsg{Type: tea.KeyEnd}, keyRunes("0"))
	assert.Equal(t, []string{"a: 20\n"}, ed.pushes)
}

func TestStaleNotificationIgnored(t *testing.T) {
	doc, m, box := setup(t, "a: 1\n")
	doc.SetText("a: 2\n", document.OriginFile, true)
	doc.SetText("a: 3\n", document.OriginFile, true)
	m = box.drain(m)
	require.Equal(t, "a: 3\n", m.Text())

	m, _ = m.Update(document.ChangeNotification{Text: "a: 2\n", Valid: true, Origin: document.OriginFile, Seq: 1})
	assert.Equal(t, "a: 3\n", m.Text())
}

func TestIndentKeysPushText(t *testing.T) {
	doc, m, _ := setup(t, "a:\nb: 1\nc: 2\n")
	m.Select(3, 3)

	m = press(m, tea.KeyMsg{Type: tea.KeyShiftDown}, tea.KeyMsg{Type: tea.KeyShiftEnd}, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "a:\n  b: 1\n  c: 2\n", m.Text())
	s, e := m.Selection()
	assert.Equal(t, [2]int{3, 16}, [2]int{s, e})

	doc.Flush()
	v, ok := document.Resolve(doc.Tree(), "a.c")
	require.True(t, ok)
	assert.Equal(t, float64(2), v.Num())

	m = press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, "a:\nb: 1\nc: 2\n", m.Text())
}

func TestEnterKeepsIndentation(t *testing.T) {
	doc, m, _ := setup(t, "a:\n  b: 1")
	m.Select(9, 9)

	m = press(m, tea.KeyMsg{Type: tea.KeyEnter}, keyRunes("c:"), tea.KeyMsg{Type: tea.KeySpace}, keyRunes("2"))
	assert.Equal(t, "a:\n  b: 1\n  c: 2", m.Text())

	doc.Flush()
	v, ok := document.Resolve(doc.Tree(), "a.c")
	require.True(t, ok)
	assert.Equal(t, float64(2), v.Num())
}

func TestNavigationDoesNotPush(t *testing.T) {
	ed := &fakeEditor{snap: document.ChangeNotification{Text: "a: 1\nb: 2\n", Valid: true}}
	m := New(ed)
	m.Focus()

	m = press(m,
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyEnd},
		tea.KeyMsg{Type: tea.KeyShiftLeft},
		tea.KeyMsg{Type: tea.KeyCtrlA},
	)
	assert.Empty(t, ed.pushes)
	s, e := m.Selection()
	assert.Equal(t, [2]int{0, 10}, [2]int{s, e})
	assert.Equal(t, StateEditing, m.State())

	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateIdle, m.State())
	s, e = m.Selection()
	assert.Equal(t, s, e)
}

func TestUnfocusedIgnoresKeys(t *testing.T) {
	_, m, _ := setup(t, "a: 1\n")
	m.Blur()
	m = press(m, keyRunes("zzz"))
	assert.Equal(t, "a: 1\n", m.Text())
	assert.Equal(t, StateIdle, m.State())
}

func TestView(t *testing.T) {
	_, m, _ := setup(t, "# scene\nmodel: gpt\n")
	view := m.View()
	assert.Contains(t, view, "model")
	assert.Contains(t, view, "# scene")
	assert.Contains(t, view, "✓ valid")
	assert.Contains(t, view, "Ln 1, Col 1")
}
