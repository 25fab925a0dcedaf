package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrPathSyntax marks a path string that cannot be parsed.
	ErrPathSyntax = errors.New("invalid path")

	// ErrNotContainer marks a write that has to descend through a scalar.
	ErrNotContainer = errors.New("path descends into a scalar")
)

// Step is one hop in a Path: a map key or an array index.
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path addresses a node, e.g. "turns[2].content". Keys that contain '.',
// '[' or ']', and the empty key, are written quoted in brackets:
// `models["gpt-4.1"].temperature`.
type Path []Step

// String renders the path in dot/bracket notation.
func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p {
		switch {
		case s.IsIndex:
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(s.Index))
			sb.WriteByte(']')
		case needsQuote(s.Key):
			sb.WriteString(quoteKey(s.Key))
		default:
			if i > 0 {
				sb.WriteByte('.')
			}
			sb.WriteString(s.Key)
		}
	}
	return sb.String()
}

func needsQuote(key string) bool {
	return key == "" || strings.ContainsAny(key, ".[]")
}

func quoteKey(key string) string {
	return "[" + strconv.Quote(key) + "]"
}

// ParsePath parses dot-delimited, bracket-indexed path text. The empty
// string is the root. A bracket holds either a non-negative index or a
// double-quoted key; a path may start with a bracket ("[0].name").
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	var out Path
	needKey := true
	for i := 0; i < len(s); {
		switch s[i] {
		case '.':
			if needKey {
				return nil, pathErr(s, errors.New("empty segment"))
			}
			needKey = true
			i++
		case '[':
			step, n, err := parseBracket(s[i:])
			if err != nil {
				return nil, pathErr(s, err)
			}
			out = append(out, step)
			needKey = false
			i += n
		case ']':
			return nil, pathErr(s, errors.New("unbalanced ']'"))
		default:
			if !needKey {
				return nil, pathErr(s, fmt.Errorf("unexpected %q after index", s[i:]))
			}
			j := i
			for j < len(s) && !strings.ContainsRune(".[]", rune(s[j])) {
				j++
			}
			out = append(out, Step{Key: s[i:j]})
			needKey = false
			i = j
		}
	}
	if needKey {
		return nil, pathErr(s, errors.New("empty segment"))
	}
	return out, nil
}

func pathErr(s string, err error) error {
	return fmt.Errorf("%w %q: %v", ErrPathSyntax, s, err)
}

// parseBracket reads one "[n]" or `["key"]` from the start of s and
// returns the step and the number of bytes consumed.
func parseBracket(s string) (Step, int, error) {
	if len(s) > 1 && s[1] == '"' {
		q, err := strconv.QuotedPrefix(s[1:])
		if err != nil {
			return Step{}, 0, fmt.Errorf("bad quoted key in %q", s)
		}
		key, err := strconv.Unquote(q)
		if err != nil {
			return Step{}, 0, fmt.Errorf("bad quoted key in %q", s)
		}
		end := 1 + len(q)
		if end >= len(s) || s[end] != ']' {
			return Step{}, 0, fmt.Errorf("missing ']' after %s", q)
		}
		return Step{Key: key}, end + 1, nil
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return Step{}, 0, fmt.Errorf("missing ']' in %q", s)
	}
	idx, err := parseIndex(s[1:end])
	if err != nil {
		return Step{}, 0, err
	}
	return Step{Index: idx, IsIndex: true}, end + 1, nil
}

func parseIndex(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty index")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("index %q is not a non-negative integer", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("index %q: %w", s, err)
	}
	return n, nil
}

// JoinKey appends a map key to a path string, quoting keys that would
// otherwise read as separators.
func JoinKey(parent, key string) string {
	if needsQuote(key) {
		return parent + quoteKey(key)
	}
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// JoinIndex appends an array index to a path string.
func JoinIndex(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

// integerKey reports whether key is a canonical non-negative integer.
func integerKey(key string) (int, bool) {
	n, err := parseIndex(key)
	if err != nil || strconv.Itoa(n) != key {
		return 0, false
	}
	return n, true
}

// indexOn returns the array index the step selects on node, if any. A bare
// digit key selects an index when the node is an array.
func (s Step) indexOn(node *Node) (int, bool) {
	if s.IsIndex {
		return s.Index, true
	}
	if node.Kind() == KindArray {
		return integerKey(s.Key)
	}
	return 0, false
}

// Resolve walks path from root. A missing key, an out-of-range index or a
// malformed path yields (nil, false).
func Resolve(root *Node, path string) (*Node, bool) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	return ResolvePath(root, p)
}

// ResolvePath is Resolve for a parsed path.
func ResolvePath(root *Node, p Path) (*Node, bool) {
	cur := root
	if cur == nil {
		return nil, false
	}
	for _, step := range p {
		switch cur.Kind() {
		case KindArray:
			idx, ok := step.indexOn(cur)
			if !ok {
				return nil, false
			}
			if cur, ok = cur.Index(idx); !ok {
				return nil, false
			}
		case KindMap:
			key := step.Key
			if step.IsIndex {
				key = strconv.Itoa(step.Index)
			}
			var ok bool
			if cur, ok = cur.Get(key); !ok {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return cur, true
}

// Assign writes value at path and returns the resulting root, which differs
// from root when the root itself had to be created or converted. Absent
// keys get intermediate containers, arrays are padded with empty maps, and
// an index step on a map converts it with CoerceToArray. On error root is
// left untouched.
func Assign(root *Node, path string, value *Node) (*Node, error) {
	p, err := ParsePath(path)
	if err != nil {
		return root, err
	}
	return AssignPath(root, p, value)
}

// AssignPath is Assign for a parsed path.
func AssignPath(root *Node, p Path, value *Node) (*Node, error) {
	out, err := assign(root, p, orNull(value))
	if err != nil {
		return root, fmt.Errorf("assign %s: %w", p, err)
	}
	return out, nil
}

func assign(node *Node, p Path, value *Node) (*Node, error) {
	if len(p) == 0 {
		return value, nil
	}
	step := p[0]
	if node.Kind() == KindNull {
		node = emptyFor(step)
	}

	if idx, ok := step.indexOn(node); ok {
		if node.Kind() != KindArray {
			node = CoerceToArray(node)
		}
		child, _ := node.Index(idx)
		updated, err := assign(child, p[1:], value)
		if err != nil {
			return nil, err
		}
		node.SetIndex(idx, updated)
		return node, nil
	}

	if node.Kind() != KindMap {
		return nil, fmt.Errorf("%w: %q on %s", ErrNotContainer, step.Key, node.Kind())
	}
	child, _ := node.Get(step.Key)
	updated, err := assign(child, p[1:], value)
	if err != nil {
		return nil, err
	}
	node.Set(step.Key, updated)
	return node, nil
}

func emptyFor(step Step) *Node {
	if step.IsIndex {
		return NewArray()
	}
	return NewMap()
}

// CoerceToArray returns an array built from node without modifying it.
// Arrays are copied shallowly. Maps keep their integer-keyed members at the
// matching index, with gaps filled by empty maps. Anything else becomes an
// empty array.
func CoerceToArray(node *Node) *Node {
	switch node.Kind() {
	case KindArray:
		return NewArray(node.items...)
	case KindMap:
		arr := NewArray()
		for _, k := range node.keys {
			if idx, ok := integerKey(k); ok {
				arr.SetIndex(idx, node.fields[k])
			}
		}
		return arr
	}
	return NewArray()
}

// Paths lists every entry below root in depth-first document order. Both
// containers and leaves are listed; the root itself is not.
func Paths(root *Node) []string {
	var out []string
	walk(root, "", func(path string, _ *Node) {
		out = append(out, path)
	})
	return out
}

// Walk visits every entry below root depth-first, parents before children.
func Walk(root *Node, fn func(path string, n *Node)) {
	walk(root, "", fn)
}

func walk(n *Node, prefix string, fn func(string, *Node)) {
	switch n.Kind() {
	case KindMap:
		for _, k := range n.keys {
			child := n.fields[k]
			p := JoinKey(prefix, k)
			fn(p, child)
			walk(child, p, fn)
		}
	case KindArray:
		for i, child := range n.items {
			p := JoinIndex(prefix, i)
			fn(p, child)
			walk(child, p, fn)
		}
	}
}
