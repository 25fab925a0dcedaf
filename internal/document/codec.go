package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrCycle marks a tree that refers back to one of its own ancestors.
var ErrCycle = errors.New("document contains a cycle")

// Codec converts between scene text and trees.
type Codec interface {
	Parse(text string) (*Node, error)
	Dump(tree *Node) (string, error)
}

// DefaultIndent is the indentation unit used by the editor.
const DefaultIndent = 2

// YAMLCodec is the gopkg.in/yaml.v3 codec. Output never contains anchors
// or aliases and long lines are never folded; multi-line strings are
// written as literal blocks.
type YAMLCodec struct {
	Indent int
}

// NewYAMLCodec returns a codec with the given indent (2 when indent < 2).
func NewYAMLCodec(indent int) *YAMLCodec {
	if indent < 2 {
		indent = DefaultIndent
	}
	return &YAMLCodec{Indent: indent}
}

// Parse decodes a single YAML document. Blank text and comment-only text
// decode to an empty map.
func (c *YAMLCodec) Parse(text string) (*Node, error) {
	dec := yaml.NewDecoder(strings.NewReader(text))

	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return NewMap(), nil
		}
		return nil, fmt.Errorf("parse: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		return nil, errors.New("parse: expected a single document, found several")
	} else if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return NewMap(), nil
		}
		root = root.Content[0]
	}
	d := &decoder{budget: expansionBudget(root)}
	return d.decode(root, 0, 0)
}

const (
	// MaxDepth bounds container nesting for both Parse and Dump.
	MaxDepth = 1000

	// maxAliasHops bounds chains of aliases through other aliases.
	maxAliasHops = 64

	// Alias expansion may add at most aliasExpansionRatio nodes per node
	// of source, plus aliasExpansionFloor.
	aliasExpansionRatio = 10
	aliasExpansionFloor = 10000
)

var (
	// ErrTooDeep marks a tree nested deeper than MaxDepth.
	ErrTooDeep = errors.New("document nests too deeply")

	// ErrAliasExpansion marks input whose aliases expand far beyond its
	// own size.
	ErrAliasExpansion = errors.New("aliases expand too far")
)

// decoder converts a yaml.Node tree, expanding aliases within a node budget.
type decoder struct {
	budget int
}

// expansionBudget counts the source nodes reachable without following
// aliases and scales that into the number of nodes decoding may produce.
func expansionBudget(root *yaml.Node) int {
	n := 0
	stack := []*yaml.Node{root}
	for len(stack) > 0 {
		y := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, y.Content...)
	}
	return n*aliasExpansionRatio + aliasExpansionFloor
}

func (d *decoder) decode(y *yaml.Node, depth, hops int) (*Node, error) {
	if d.budget--; d.budget < 0 {
		return nil, fmt.Errorf("parse: %w", ErrAliasExpansion)
	}
	switch y.Kind {
	case yaml.AliasNode:
		if y.Alias == nil {
			return nil, fmt.Errorf("parse: line %d: unknown alias", y.Line)
		}
		if hops >= maxAliasHops {
			return nil, fmt.Errorf("parse: line %d: %w", y.Line, ErrAliasExpansion)
		}
		return d.decode(y.Alias, depth, hops+1)

	case yaml.SequenceNode:
		if depth >= MaxDepth {
			return nil, fmt.Errorf("parse: line %d: %w", y.Line, ErrTooDeep)
		}
		arr := NewArray()
		for _, item := range y.Content {
			n, err := d.decode(item, depth+1, hops)
			if err != nil {
				return nil, err
			}
			arr.Append(n)
		}
		return arr, nil

	case yaml.MappingNode:
		if depth >= MaxDepth {
			return nil, fmt.Errorf("parse: line %d: %w", y.Line, ErrTooDeep)
		}
		m := NewMap()
		var merges []*yaml.Node
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			if k.Kind == yaml.ScalarNode && k.Tag == "!!merge" {
				merges = append(merges, v)
				continue
			}
			val, err := d.decode(v, depth+1, hops)
			if err != nil {
				return nil, err
			}
			m.Set(keyText(k), val)
		}
		// Explicit keys win over merged ones.
		for _, src := range merges {
			if err := d.mergeInto(m, src, depth, hops); err != nil {
				return nil, err
			}
		}
		return m, nil

	case yaml.ScalarNode:
		return scalarFromYAML(y)
	}
	return Null(), nil
}

// mergeInto applies a "<<" value to m, which sits at depth.
func (d *decoder) mergeInto(m *Node, src *yaml.Node, depth, hops int) error {
	if src.Kind == yaml.SequenceNode {
		for _, s := range src.Content {
			if err := d.mergeInto(m, s, depth, hops); err != nil {
				return err
			}
		}
		return nil
	}
	merged, err := d.decode(src, depth, hops)
	if err != nil {
		return err
	}
	if merged.Kind() != KindMap {
		return fmt.Errorf("parse: line %d: merge value is not a map", src.Line)
	}
	for _, k := range merged.keys {
		if _, exists := m.Get(k); !exists {
			m.Set(k, merged.fields[k])
		}
	}
	return nil
}

func keyText(k *yaml.Node) string {
	if k.Kind == yaml.AliasNode && k.Alias != nil {
		k = k.Alias
	}
	if k.Kind == yaml.ScalarNode {
		return k.Value
	}
	// Complex keys are flattened to their flow rendering.
	out, err := yaml.Marshal(k)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func scalarFromYAML(y *yaml.Node) (*Node, error) {
	switch y.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := y.Decode(&b); err != nil {
			return nil, fmt.Errorf("parse: line %d: %w", y.Line, err)
		}
		return Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := y.Decode(&f); err != nil {
			return nil, fmt.Errorf("parse: line %d: %w", y.Line, err)
		}
		return Number(f), nil
	}
	// !!str, !!timestamp, !!binary and custom tags keep their literal text.
	return String(y.Value), nil
}

// Dump encodes tree as YAML.
func (c *YAMLCodec) Dump(tree *Node) (string, error) {
	y, err := toYAML(tree, make(map[*Node]bool))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	indent := c.Indent
	if indent < 2 {
		indent = DefaultIndent
	}
	enc.SetIndent(indent)
	if err := enc.Encode(y); err != nil {
		return "", fmt.Errorf("dump: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("dump: %w", err)
	}
	return buf.String(), nil
}

func toYAML(n *Node, onPath map[*Node]bool) (*yaml.Node, error) {
	if n != nil && onPath[n] {
		return nil, fmt.Errorf("dump: %w", ErrCycle)
	}
	if n.Kind().IsContainer() && len(onPath) >= MaxDepth {
		return nil, fmt.Errorf("dump: %w", ErrTooDeep)
	}
	switch n.Kind() {
	case KindMap:
		onPath[n] = true
		defer delete(onPath, n)
		y := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range n.keys {
			v, err := toYAML(n.fields[k], onPath)
			if err != nil {
				return nil, err
			}
			y.Content = append(y.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, v)
		}
		return y, nil

	case KindArray:
		onPath[n] = true
		defer delete(onPath, n)
		y := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range n.items {
			v, err := toYAML(it, onPath)
			if err != nil {
				return nil, err
			}
			y.Content = append(y.Content, v)
		}
		return y, nil

	case KindString:
		y := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.str}
		if strings.Contains(strings.TrimRight(n.str, "\n"), "\n") && !hasTrailingSpace(n.str) {
			y.Style = yaml.LiteralStyle
		}
		return y, nil

	case KindNumber:
		if n.num == math.Trunc(n.num) && math.Abs(n.num) < 1e15 {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(n.num), 10)}, nil
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: FormatNumber(n.num)}, nil

	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(n.b)}, nil
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
}

// Literal blocks cannot carry trailing spaces on a line; those strings stay
// double-quoted.
func hasTrailingSpace(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t") {
			return true
		}
	}
	return false
}

// Inline encodes n as single-line YAML flow text, e.g. `{a: 1, b: [x, y]}`.
// Scalars encode as they would in a document.
func Inline(n *Node) (string, error) {
	y, err := toYAML(n, make(map[*Node]bool))
	if err != nil {
		return "", err
	}
	flow(y)
	out, err := yaml.Marshal(y)
	if err != nil {
		return "", fmt.Errorf("inline: %w", err)
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}

func flow(y *yaml.Node) {
	switch y.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		y.Style = yaml.FlowStyle
		for _, c := range y.Content {
			flow(c)
		}
	case yaml.ScalarNode:
		if y.Style == yaml.LiteralStyle {
			y.Style = yaml.DoubleQuotedStyle
		}
	}
}
