package formview

import (
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"promptscene/internal/document"
)

// Row is one rendered entry of the form: a map member or an array item at
// any depth.
type Row struct {
	Path    string
	Label   string
	Depth   int
	Kind    document.Kind
	Parent  string
	Key     string
	Index   int
	InArray bool
	Size    int
}

// Container reports whether the row holds a map or array.
func (r Row) Container() bool { return r.Kind.IsContainer() }

// buildRows lists rows in depth-first document order, matching document.Paths.
func buildRows(root *document.Node) []Row {
	var rows []Row
	var walk func(n *document.Node, prefix string, depth int)
	walk = func(n *document.Node, prefix string, depth int) {
		switch n.Kind() {
		case document.KindMap:
			for _, k := range n.Keys() {
				child, _ := n.Get(k)
				p := document.JoinKey(prefix, k)
				rows = append(rows, Row{
					Path: p, Label: k, Depth: depth, Kind: child.Kind(),
					Parent: prefix, Key: k, Size: child.Len(),
				})
				walk(child, p, depth+1)
			}
		case document.KindArray:
			for i, child := range n.Items() {
				p := document.JoinIndex(prefix, i)
				rows = append(rows, Row{
					Path: p, Label: "[" + strconv.Itoa(i) + "]", Depth: depth, Kind: child.Kind(),
					Parent: prefix, Index: i, InArray: true, Size: child.Len(),
				})
				walk(child, p, depth+1)
			}
		}
	}
	walk(root, "", 0)
	return rows
}

// samePathSet compares two path lists as sets.
func samePathSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Binding is the live control for one leaf row.
type Binding struct {
	ID    int
	Path  string
	Kind  document.Kind
	Input textinput.Model
	On    bool

	// raw is the full string value; the input flattens newlines.
	raw string
}

func newBinding(id int, path string, v *document.Node) *Binding {
	b := &Binding{ID: id, Path: path, Kind: v.Kind()}
	if b.Kind == document.KindString || b.Kind == document.KindNumber {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholderFor(b.Kind)
		b.Input = in
	}
	b.set(v)
	return b
}

func placeholderFor(k document.Kind) string {
	if k == document.KindNumber {
		return "0"
	}
	return `""`
}

// set overwrites the control's content with v.
func (b *Binding) set(v *document.Node) {
	switch b.Kind {
	case document.KindString, document.KindNumber:
		pos := b.Input.Position()
		b.raw = v.Text()
		b.Input.SetValue(b.raw)
		b.Input.SetCursor(pos)
	case document.KindBool:
		b.On = v.Truth()
	}
}

// Matches reports whether the control already shows v, comparing numbers by
// value so "1.50" matches 1.5.
func (b *Binding) Matches(v *document.Node) bool {
	switch b.Kind {
	case document.KindString:
		return b.raw == v.Str()
	case document.KindNumber:
		f, err := strconv.ParseFloat(b.Input.Value(), 64)
		return err == nil && f == v.Num()
	case document.KindBool:
		return b.On == v.Truth()
	}
	return true
}

// Typed returns the control's value as a node of the binding's kind.
func (b *Binding) Typed() (*document.Node, error) {
	switch b.Kind {
	case document.KindString:
		return document.String(b.Input.Value()), nil
	case document.KindNumber:
		f, err := strconv.ParseFloat(b.Input.Value(), 64)
		if err != nil {
			return nil, err
		}
		return document.Number(f), nil
	case document.KindBool:
		return document.Bool(b.On), nil
	}
	return document.Null(), nil
}

// Editable reports whether the control takes typed input. Multi-line
// strings are edited in the text view only.
func (b *Binding) Editable() bool {
	switch b.Kind {
	case document.KindString:
		return !b.Multiline()
	case document.KindNumber:
		return true
	}
	return false
}

// Multiline reports whether a string binding holds more than one line.
func (b *Binding) Multiline() bool {
	return b.Kind == document.KindString && strings.Contains(b.raw, "\n")
}

// Raw returns the full value of a string or number binding.
func (b *Binding) Raw() string { return b.raw }

// typed records a value the user entered in the input.
func (b *Binding) typed() {
	b.raw = b.Input.Value()
}
