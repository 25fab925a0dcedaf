package textview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classOf returns the class shared by every rune of the first occurrence of
// sub in line, failing when the runes disagree.
func classOf(t *testing.T, line, sub string) Class {
	t.Helper()
	i := strings.Index(line, sub)
	require.GreaterOrEqual(t, i, 0, "%q not in %q", sub, line)
	classes := Classify(line)
	start := len([]rune(line[:i]))
	n := len([]rune(sub))
	c := classes[start]
	for _, got := range classes[start : start+n] {
		require.Equal(t, c, got, "mixed classes for %q in %q", sub, line)
	}
	return c
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		sub  string
		want Class
	}{
		{"# heading", "# heading", ClassComment},
		{"model: gpt-4 # note", "model", ClassKey},
		{"model: gpt-4 # note", "gpt-4", ClassPlain},
		{"model: gpt-4 # note", "# note", ClassComment},
		{"  - name: a", "-", ClassListMarker},
		{"  - name: a", "name", ClassKey},
		{"stream: true", "true", ClassBool},
		{"stream: Off", "Off", ClassBool},
		{"stop: null", "null", ClassNull},
		{"stop: ~", "~", ClassNull},
		{"temperature: 0.7", "0.7", ClassNumber},
		{"n: -3", "-3", ClassNumber},
		{"n: 1e10", "1e10", ClassNumber},
		{"big: .inf", ".inf", ClassNumber},
		{"- 42", "42", ClassNumber},
		{"- 42", "-", ClassListMarker},
		{`s: "a # b"`, `"a # b"`, ClassString},
		{`s: 'it''s'`, `'it''s'`, ClassString},
		{"url: http://x.io/a#b", "http://x.io/a#b", ClassPlain},
		{"url: http://x.io/a#b", "url", ClassKey},
		{"version: 1.2.3", "1.2.3", ClassPlain},
		{"---", "---", ClassPlain},
	}

	for _, tt := range tests {
		t.Run(tt.line+"/"+tt.sub, func(t *testing.T) {
			assert.Equal(t, tt.want, classOf(t, tt.line, tt.sub))
		})
	}
}

func TestClassifyNestedListMarkers(t *testing.T) {
	classes := Classify("- - a")
	assert.Equal(t, ClassListMarker, classes[0])
	assert.Equal(t, ClassListMarker, classes[2])
	assert.Equal(t, ClassPlain, classes[4])
}

func TestClassifyLengthMatchesRunes(t *testing.T) {
	for _, line := range []string{"", "名前: 値 # コメント", "  - ", "key:"} {
		assert.Len(t, Classify(line), len([]rune(line)), line)
	}
}

func TestClassifyMultibyteKey(t *testing.T) {
	assert.Equal(t, ClassKey, classOf(t, "名前: 値 # コメント", "名前"))
	assert.Equal(t, ClassComment, classOf(t, "名前: 値 # コメント", "# コメント"))
}
