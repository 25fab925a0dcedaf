package diff

import (
	"fmt"

	"promptscene/internal/document"
)

// Documents diffs the serialized forms of two trees.
func Documents(name string, before, after *document.Node, codec document.Codec) (*FileDiff, error) {
	oldText, err := codec.Dump(before)
	if err != nil {
		return nil, fmt.Errorf("dump original: %w", err)
	}
	newText, err := codec.Dump(after)
	if err != nil {
		return nil, fmt.Errorf("dump updated: %w", err)
	}
	return ComputeDiff("a/"+name, "b/"+name, oldText, newText), nil
}

// ChangeKind classifies a path-level change.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeUpdated ChangeKind = "updated"
)

// Change is one path whose value differs between two trees.
type Change struct {
	Path   string
	Kind   ChangeKind
	Before string
	After  string
}

// Changes lists the paths that differ between before and after: additions
// and updates in after's order, then removals in before's order. A
// container is reported only when it appears, disappears or changes kind;
// changes inside it are reported at their own paths.
func Changes(before, after *document.Node) []Change {
	old := make(map[string]*document.Node)
	document.Walk(before, func(p string, n *document.Node) { old[p] = n })

	var out []Change
	seen := make(map[string]bool)
	document.Walk(after, func(p string, n *document.Node) {
		seen[p] = true
		prev, ok := old[p]
		switch {
		case !ok:
			out = append(out, Change{Path: p, Kind: ChangeAdded, After: n.Text()})
		case prev.Kind() != n.Kind():
			out = append(out, Change{Path: p, Kind: ChangeUpdated, Before: prev.Text(), After: n.Text()})
		case !n.Kind().IsContainer() && !prev.Equal(n):
			out = append(out, Change{Path: p, Kind: ChangeUpdated, Before: prev.Text(), After: n.Text()})
		}
	})
	document.Walk(before, func(p string, n *document.Node) {
		if !seen[p] {
			out = append(out, Change{Path: p, Kind: ChangeRemoved, Before: n.Text()})
		}
	})
	return out
}
