// Package document owns the canonical scene tree and its YAML text form.
//
// A scene is a tree of maps, arrays and scalars. The Manager keeps that tree
// and its serialized text consistent, addresses nodes by dot/bracket paths,
// and notifies subscribers (the form and text views) of every change.
package document

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind is the tag of a Node.
type Kind int

const (
	KindNull Kind = iota
	KindMap
	KindArray
	KindString
	KindNumber
	KindBool
)

// String returns the display name for the kind.
func (k Kind) String() string {
	names := []string{"null", "map", "array", "string", "number", "boolean"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// IsContainer reports whether nodes of this kind hold children.
func (k Kind) IsContainer() bool {
	return k == KindMap || k == KindArray
}

// Node is one value in a scene tree. The zero value is a null node.
// Maps remember key insertion order for display.
type Node struct {
	kind Kind

	keys   []string
	fields map[string]*Node
	items  []*Node

	str string
	num float64
	b   bool
}

// Null returns a new null node.
func Null() *Node { return &Node{kind: KindNull} }

// String returns a new string node.
func String(s string) *Node { return &Node{kind: KindString, str: s} }

// Number returns a new number node.
func Number(f float64) *Node { return &Node{kind: KindNumber, num: f} }

// Bool returns a new boolean node.
func Bool(b bool) *Node { return &Node{kind: KindBool, b: b} }

// NewMap returns an empty map node.
func NewMap() *Node {
	return &Node{kind: KindMap, fields: make(map[string]*Node)}
}

// NewArray returns an array node holding items.
func NewArray(items ...*Node) *Node {
	n := &Node{kind: KindArray, items: make([]*Node, 0, len(items))}
	for _, it := range items {
		n.items = append(n.items, orNull(it))
	}
	return n
}

func orNull(n *Node) *Node {
	if n == nil {
		return Null()
	}
	return n
}

// Kind returns the node's tag. A nil node is null.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// Str returns the string payload (empty for non-strings).
func (n *Node) Str() string {
	if n == nil {
		return ""
	}
	return n.str
}

// Num returns the number payload (zero for non-numbers).
func (n *Node) Num() float64 {
	if n == nil {
		return 0
	}
	return n.num
}

// Truth returns the boolean payload (false for non-booleans).
func (n *Node) Truth() bool {
	if n == nil {
		return false
	}
	return n.b
}

// Len returns the number of map entries or array items.
func (n *Node) Len() int {
	switch n.Kind() {
	case KindMap:
		return len(n.keys)
	case KindArray:
		return len(n.items)
	}
	return 0
}

// Keys returns map keys in insertion order.
func (n *Node) Keys() []string {
	if n.Kind() != KindMap {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Get returns the child under key.
func (n *Node) Get(key string) (*Node, bool) {
	if n.Kind() != KindMap {
		return nil, false
	}
	child, ok := n.fields[key]
	return child, ok
}

// Set stores child under key, appending the key if it is new.
// Set on a non-map node is a no-op.
func (n *Node) Set(key string, child *Node) {
	if n.Kind() != KindMap {
		return
	}
	if _, exists := n.fields[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = orNull(child)
}

// Delete removes key from a map node. It reports whether the key existed.
func (n *Node) Delete(key string) bool {
	if n.Kind() != KindMap {
		return false
	}
	if _, ok := n.fields[key]; !ok {
		return false
	}
	delete(n.fields, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
	return true
}

// Index returns the array item at i.
func (n *Node) Index(i int) (*Node, bool) {
	if n.Kind() != KindArray || i < 0 || i >= len(n.items) {
		return nil, false
	}
	return n.items[i], true
}

// Items returns the array items. The slice is a copy; the items are not.
func (n *Node) Items() []*Node {
	if n.Kind() != KindArray {
		return nil
	}
	out := make([]*Node, len(n.items))
	copy(out, n.items)
	return out
}

// Append adds items to the end of an array node.
func (n *Node) Append(items ...*Node) {
	if n.Kind() != KindArray {
		return
	}
	for _, it := range items {
		n.items = append(n.items, orNull(it))
	}
}

// SetIndex overwrites item i, padding with empty maps when i is past the end.
func (n *Node) SetIndex(i int, child *Node) {
	if n.Kind() != KindArray || i < 0 {
		return
	}
	for len(n.items) <= i {
		n.items = append(n.items, NewMap())
	}
	n.items[i] = orNull(child)
}

// RemoveIndex splices item i out of an array node.
func (n *Node) RemoveIndex(i int) bool {
	if n.Kind() != KindArray || i < 0 || i >= len(n.items) {
		return false
	}
	n.items = append(n.items[:i], n.items[i+1:]...)
	return true
}

// Clone returns a deep copy. A reference back to an ancestor (a cycle) is
// copied as null so the result is always a finite tree.
func (n *Node) Clone() *Node {
	return n.clone(make(map[*Node]bool))
}

func (n *Node) clone(onPath map[*Node]bool) *Node {
	if n == nil || onPath[n] {
		return Null()
	}
	c := &Node{kind: n.kind, str: n.str, num: n.num, b: n.b}
	switch n.kind {
	case KindMap:
		onPath[n] = true
		c.keys = make([]string, len(n.keys))
		copy(c.keys, n.keys)
		c.fields = make(map[string]*Node, len(n.fields))
		for k, v := range n.fields {
			c.fields[k] = v.clone(onPath)
		}
		delete(onPath, n)
	case KindArray:
		onPath[n] = true
		c.items = make([]*Node, len(n.items))
		for i, it := range n.items {
			c.items[i] = it.clone(onPath)
		}
		delete(onPath, n)
	}
	return c
}

// Equal reports deep structural equality. Map key order is ignored.
func (n *Node) Equal(o *Node) bool {
	if n.Kind() != o.Kind() {
		return false
	}
	switch n.Kind() {
	case KindNull:
		return true
	case KindString:
		return n.str == o.str
	case KindNumber:
		return n.num == o.num || (math.IsNaN(n.num) && math.IsNaN(o.num))
	case KindBool:
		return n.b == o.b
	case KindArray:
		if len(n.items) != len(o.items) {
			return false
		}
		for i := range n.items {
			if !n.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(n.fields) != len(o.fields) {
			return false
		}
		for k, v := range n.fields {
			ov, ok := o.fields[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Text renders a scalar the way it appears in an editable field.
// Containers render as a short summary.
func (n *Node) Text() string {
	switch n.Kind() {
	case KindString:
		return n.str
	case KindNumber:
		return FormatNumber(n.num)
	case KindBool:
		return strconv.FormatBool(n.b)
	case KindNull:
		return "null"
	case KindMap:
		return fmt.Sprintf("{%d}", len(n.keys))
	case KindArray:
		return fmt.Sprintf("[%d]", len(n.items))
	}
	return ""
}

// FormatNumber prints integral values without a fractional part.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Interface converts the tree into plain Go values: map[string]any,
// []any, string, float64, bool and nil.
func (n *Node) Interface() any {
	switch n.Kind() {
	case KindMap:
		m := make(map[string]any, len(n.keys))
		for _, k := range n.keys {
			m[k] = n.fields[k].Interface()
		}
		return m
	case KindArray:
		a := make([]any, len(n.items))
		for i, it := range n.items {
			a[i] = it.Interface()
		}
		return a
	case KindString:
		return n.str
	case KindNumber:
		return n.num
	case KindBool:
		return n.b
	}
	return nil
}

// FromInterface builds a tree from plain Go values. Keys of a
// map[string]any are inserted in sorted order; callers that need another
// order build maps with Set.
func FromInterface(v any) *Node {
	switch t := v.(type) {
	case nil:
		return Null()
	case *Node:
		return t.Clone()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case []any:
		arr := NewArray()
		for _, it := range t {
			arr.Append(FromInterface(it))
		}
		return arr
	case []string:
		arr := NewArray()
		for _, it := range t {
			arr.Append(String(it))
		}
		return arr
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, FromInterface(t[k]))
		}
		return m
	}
	return String(fmt.Sprint(v))
}

// ZeroLike returns the empty default used when a record template is copied:
// false for booleans, 0 for numbers and "" for everything else.
func ZeroLike(n *Node) *Node {
	switch n.Kind() {
	case KindBool:
		return Bool(false)
	case KindNumber:
		return Number(0)
	}
	return String("")
}
