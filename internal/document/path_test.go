package document

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Path
	}{
		{"root", "", Path{}},
		{"single key", "model", Path{{Key: "model"}}},
		{"dotted", "a.b.c", Path{{Key: "a"}, {Key: "b"}, {Key: "c"}}},
		{"index suffix", "turns[2]", Path{{Key: "turns"}, {Index: 2, IsIndex: true}}},
		{"mid-path index", "a[2].b", Path{{Key: "a"}, {Index: 2, IsIndex: true}, {Key: "b"}}},
		{"nested indices", "m[0][1]", Path{{Key: "m"}, {Index: 0, IsIndex: true}, {Index: 1, IsIndex: true}}},
		{"root array", "[0].name", Path{{Index: 0, IsIndex: true}, {Key: "name"}}},
		{"digit key", "a.0", Path{{Key: "a"}, {Key: "0"}}},
		{"quoted key", `models["gpt-4.1"].temperature`, Path{{Key: "models"}, {Key: "gpt-4.1"}, {Key: "temperature"}}},
		{"quoted root key", `["a.b"]`, Path{{Key: "a.b"}}},
		{"escaped quote", `["say \"hi\""]`, Path{{Key: `say "hi"`}}},
		{"empty key", `a[""]`, Path{{Key: "a"}, {Key: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParsePath(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	for _, in := range []string{"a[", "a[x]", "a..b", "a[-1]", ".a", "a.", "a]b", "a[1]b", "a[]", `a["x"`, `a["x]`, `a["x"]b`, `a[x"]`} {
		t.Run(in, func(t *testing.T) {
			_, err := ParsePath(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrPathSyntax))
		})
	}
}

func TestPathStringRoundTrip(t *testing.T) {
	for _, in := range []string{"a", "a.b", "a[2].b", "m[0][1]", "[3]", "[0].x.y[4]", `models["gpt-4.1"].t`, `["a.b"][0]`, `x[""]`} {
		p, err := ParsePath(in)
		require.NoError(t, err)
		assert.Equal(t, in, p.String())
	}
}

func sample(t *testing.T) *Node {
	t.Helper()
	tree, err := NewYAMLCodec(2).Parse(`
model: gpt
params:
  temperature: 0.7
turns:
  - role: system
    content: hi
  - role: user
    content: hello
`)
	require.NoError(t, err)
	return tree
}

func TestResolve(t *testing.T) {
	tree := sample(t)

	tests := []struct {
		path string
		want *Node
		ok   bool
	}{
		{"model", String("gpt"), true},
		{"params.temperature", Number(0.7), true},
		{"turns[1].content", String("hello"), true},
		{"turns.1.role", String("user"), true},
		{"turns[2]", nil, false},
		{"missing.deeper", nil, false},
		{"model.x", nil, false},
		{"a[", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Resolve(tree, tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v", got.Interface())
			} else {
				assert.Nil(t, got)
			}
		})
	}

	root, ok := Resolve(tree, "")
	require.True(t, ok)
	assert.Same(t, tree, root)
}

func TestAssignCreatesIntermediates(t *testing.T) {
	root, err := Assign(NewMap(), "a.b[2].c", String("x"))
	require.NoError(t, err)

	want := map[string]any{
		"a": map[string]any{
			"b": []any{map[string]any{}, map[string]any{}, map[string]any{"c": "x"}},
		},
	}
	if diff := cmp.Diff(want, root.Interface()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignOverwritesAndReturnsRoot(t *testing.T) {
	tree := sample(t)
	root, err := Assign(tree, "turns[0].content", String("be brief"))
	require.NoError(t, err)
	assert.Same(t, tree, root)

	got, ok := Resolve(root, "turns[0].content")
	require.True(t, ok)
	assert.Equal(t, "be brief", got.Str())

	replaced, err := Assign(tree, "", Number(1))
	require.NoError(t, err)
	assert.Equal(t, KindNumber, replaced.Kind())
}

func TestAssignIndexOnMapCoerces(t *testing.T) {
	m := NewMap()
	m.Set("0", String("zero"))
	m.Set("2", String("two"))
	m.Set("name", String("dropped"))
	root := NewMap()
	root.Set("list", m)

	root, err := Assign(root, "list[1]", String("one"))
	require.NoError(t, err)

	list, ok := Resolve(root, "list")
	require.True(t, ok)
	assert.Equal(t, []any{"zero", "one", "two"}, list.Interface())
}

func TestAssignThroughScalarFails(t *testing.T) {
	tree := sample(t)
	before := tree.Clone()

	_, err := Assign(tree, "model.name", String("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotContainer))
	assert.True(t, before.Equal(tree), "failed assign must not modify the tree")

	_, err = Assign(tree, "a..b", String("x"))
	assert.True(t, errors.Is(err, ErrPathSyntax))
}

func TestPathWriteReadSymmetry(t *testing.T) {
	paths := []string{"a", "a.b", "x[0]", "x[3].y", "deep.list[1][2].leaf", "turns[1].content"}
	values := []*Node{String("v"), Number(42), Number(-1.5), Bool(true), Null()}

	for _, p := range paths {
		for _, v := range values {
			root, err := Assign(sample(t), p, v)
			require.NoError(t, err, p)
			got, ok := Resolve(root, p)
			require.True(t, ok, p)
			assert.True(t, v.Equal(got), "%s: want %v got %v", p, v.Interface(), got.Interface())
		}
	}
}

func TestCoerceToArray(t *testing.T) {
	arr := NewArray(String("a"), String("b"))
	c := CoerceToArray(arr)
	assert.NotSame(t, arr, c)
	c.Append(String("c"))
	assert.Equal(t, 2, arr.Len(), "input array must not change")

	m := NewMap()
	m.Set("1", String("one"))
	m.Set("k", String("ignored"))
	got := CoerceToArray(m)
	assert.Equal(t, []any{map[string]any{}, "one"}, got.Interface())
	assert.Equal(t, 2, m.Len(), "input map must not change")

	assert.Equal(t, 0, CoerceToArray(String("s")).Len())
	assert.Equal(t, 0, CoerceToArray(nil).Len())
}

func TestPathsOrder(t *testing.T) {
	want := []string{
		"model",
		"params", "params.temperature",
		"turns",
		"turns[0]", "turns[0].role", "turns[0].content",
		"turns[1]", "turns[1].role", "turns[1].content",
	}
	if diff := cmp.Diff(want, Paths(sample(t))); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, Paths(NewMap()))
}

func TestJoinKeyQuotesSeparators(t *testing.T) {
	assert.Equal(t, "model", JoinKey("", "model"))
	assert.Equal(t, "a.b", JoinKey("a", "b"))
	assert.Equal(t, `["a.b"]`, JoinKey("", "a.b"))
	assert.Equal(t, `models["gpt-4.1"]`, JoinKey("models", "gpt-4.1"))
	assert.Equal(t, `x["[0]"]`, JoinKey("x", "[0]"))

	tree, err := NewYAMLCodec(2).Parse("a.b: x\nmodels:\n  gpt-4.1: 0.2\n")
	require.NoError(t, err)
	assert.Equal(t, []string{`["a.b"]`, "models", `models["gpt-4.1"]`}, Paths(tree))
	for _, p := range Paths(tree) {
		_, ok := Resolve(tree, p)
		assert.True(t, ok, "path %s", p)
	}
}
