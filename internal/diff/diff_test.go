package diff

import (
	"fmt"
	"strings"
	"testing"

	"promptscene/internal/document"
)

func TestComputeDiff_Unified(t *testing.T) {
	oldContent := "a: 1\nb: 2\nc: 3\n"
	newContent := "a: 1\nb: 5\nc: 3\n"

	d := NewEngine(3).ComputeDiff("a/scene.yaml", "b/scene.yaml", oldContent, newContent)

	want := `--- a/scene.yaml
+++ b/scene.yaml
@@ -1,3 +1,3 @@
 a: 1
-b: 2
+b: 5
 c: 3
`
	if got := d.Unified(); got != want {
		t.Errorf("unified mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
	if added, removed := d.Stats(); added != 1 || removed != 1 {
		t.Errorf("Stats() = %d, %d; want 1, 1", added, removed)
	}
}

func TestComputeDiff_Addition(t *testing.T) {
	d := NewEngine(3).ComputeDiff("old", "new", "a: 1\n", "a: 1\nb: 2\n")

	if len(d.Hunks) != 1 {
		t.Fatalf("Expected 1 hunk, got %d", len(d.Hunks))
	}
	if got := d.Hunks[0].Header(); got != "@@ -1 +1,2 @@" {
		t.Errorf("Header() = %q", got)
	}
	last := d.Hunks[0].Lines[1]
	if last.Type != LineAdded || last.Content != "b: 2" || last.LineNum != 2 {
		t.Errorf("unexpected added line: %+v", last)
	}
}

func TestComputeDiff_NewFile(t *testing.T) {
	d := NewEngine(3).ComputeDiff("", "scene.yaml", "", "a: 1\n")

	if !d.IsNew || d.IsDelete {
		t.Error("Expected diff to be marked as new file")
	}
	if got := d.Hunks[0].Header(); got != "@@ -0,0 +1 @@" {
		t.Errorf("Header() = %q", got)
	}
	if !strings.HasPrefix(d.Unified(), "--- /dev/null\n") {
		t.Errorf("new file should diff against /dev/null:\n%s", d.Unified())
	}
}

func TestComputeDiff_DeletedFile(t *testing.T) {
	d := NewEngine(3).ComputeDiff("scene.yaml", "", "a: 1\nb: 2\n", "")

	if !d.IsDelete || d.IsNew {
		t.Error("Expected diff to be marked as deleted file")
	}
	if got := d.Hunks[0].Header(); got != "@@ -1,2 +0,0 @@" {
		t.Errorf("Header() = %q", got)
	}
}

func TestComputeDiff_NoChanges(t *testing.T) {
	content := "a: 1\nb: 2\n"
	d := NewEngine(3).ComputeDiff("f", "f", content, content)

	if !d.Empty() {
		t.Errorf("Expected 0 hunks for identical content, got %d", len(d.Hunks))
	}
	if d.Unified() != "" {
		t.Error("Expected empty unified output")
	}
}

func numbered(n int, change map[int]string) string {
	var lines []string
	for i := 1; i <= n; i++ {
		if c, ok := change[i]; ok {
			lines = append(lines, c)
			continue
		}
		lines = append(lines, fmt.Sprintf("line%d", i))
	}
	return strings.Join(lines, "\n")
}

func TestComputeDiff_MultipleHunks(t *testing.T) {
	oldContent := numbered(15, nil)
	newContent := numbered(15, map[int]string{3: "CHANGED3", 13: "CHANGED13"})

	d := NewEngine(3).ComputeDiff("old", "new", oldContent, newContent)

	if len(d.Hunks) != 2 {
		t.Fatalf("Expected 2 hunks, got %d", len(d.Hunks))
	}
	if got := d.Hunks[0].Header(); got != "@@ -1,6 +1,6 @@" {
		t.Errorf("first header = %q", got)
	}
	if got := d.Hunks[1].Header(); got != "@@ -10,6 +10,6 @@" {
		t.Errorf("second header = %q", got)
	}
}

func TestComputeDiff_NearbyChangesShareHunk(t *testing.T) {
	oldContent := numbered(15, nil)
	newContent := numbered(15, map[int]string{3: "CHANGED3", 10: "CHANGED10"})

	d := NewEngine(3).ComputeDiff("old", "new", oldContent, newContent)

	if len(d.Hunks) != 1 {
		t.Fatalf("Expected changes 6 lines apart to share a hunk, got %d hunks", len(d.Hunks))
	}
	if got := d.Hunks[0].Header(); got != "@@ -1,13 +1,13 @@" {
		t.Errorf("header = %q", got)
	}
}

func TestComputeDiff_ContextLines(t *testing.T) {
	oldContent := numbered(9, nil)
	newContent := numbered(9, map[int]string{5: "CHANGED"})

	for _, ctx := range []int{0, 1, 3} {
		d := NewEngine(ctx).ComputeDiff("old", "new", oldContent, newContent)
		if len(d.Hunks) != 1 {
			t.Fatalf("context %d: expected 1 hunk, got %d", ctx, len(d.Hunks))
		}
		context := 0
		for _, l := range d.Hunks[0].Lines {
			if l.Type == LineContext {
				context++
			}
		}
		if context != 2*ctx {
			t.Errorf("context %d: got %d context lines", ctx, context)
		}
	}
}

func TestComputeDiff_Caching(t *testing.T) {
	oldContent := "a: 1\n"
	newContent := "a: 1\nb: 2\n"
	engine := NewEngine(3)

	d1 := engine.ComputeDiff("old.yaml", "new.yaml", oldContent, newContent)
	d2 := engine.ComputeDiff("old2.yaml", "new2.yaml", oldContent, newContent)

	if len(d1.Hunks) != len(d2.Hunks) {
		t.Errorf("Cache should preserve hunk count: %d vs %d", len(d1.Hunks), len(d2.Hunks))
	}
	if d2.OldPath != "old2.yaml" || d2.NewPath != "new2.yaml" {
		t.Error("Cached diff should have updated paths")
	}
	if d1.OldPath != "old.yaml" {
		t.Error("Cache hit must not rename earlier results")
	}

	engine.ClearCache()
	d3 := engine.ComputeDiff("old.yaml", "new.yaml", oldContent, newContent)
	if len(d3.Hunks) != len(d1.Hunks) {
		t.Error("Cache clearing should not affect diff computation")
	}
}

func TestComputeDiff_LargeFile(t *testing.T) {
	var oldLines, newLines []string
	for i := 0; i < 1000; i++ {
		oldLines = append(oldLines, fmt.Sprintf("key%d: %d", i, i))
		newLines = append(newLines, fmt.Sprintf("key%d: %d", i, i))
	}
	newLines[500] = "key500: changed"

	d := NewEngine(3).ComputeDiff("old", "new", strings.Join(oldLines, "\n"), strings.Join(newLines, "\n"))

	if len(d.Hunks) != 1 {
		t.Fatalf("Expected 1 hunk, got %d", len(d.Hunks))
	}
	if got := d.Hunks[0].Header(); got != "@@ -498,7 +498,7 @@" {
		t.Errorf("header = %q", got)
	}
}

func TestComputeWordLevelDiff(t *testing.T) {
	diffs := NewEngine(3).ComputeWordLevelDiff("model: gpt-3", "model: gpt-4")

	changed := false
	for _, d := range diffs {
		if strings.Contains(d.Text, "4") || strings.Contains(d.Text, "3") {
			changed = true
		}
	}
	if !changed {
		t.Error("Expected to detect the changed version")
	}
}

func TestRender(t *testing.T) {
	d := NewEngine(3).ComputeDiff("old", "new", "a: 1\n", "a: 2\n")
	out := d.Render(DefaultStyles())
	for _, want := range []string{"--- old", "+++ new", "@@ -1 +1 @@", "-a: 1", "+a: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func mustParse(t *testing.T, text string) *document.Node {
	t.Helper()
	n, err := document.NewYAMLCodec(2).Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return n
}

func TestDocuments(t *testing.T) {
	before := mustParse(t, "model: gpt\nt: 1\n")
	after := mustParse(t, "model: gpt\nt: 2\n")

	d, err := Documents("scene.yaml", before, after, document.NewYAMLCodec(2))
	if err != nil {
		t.Fatal(err)
	}
	out := d.Unified()
	if !strings.Contains(out, "-t: 1\n+t: 2\n") {
		t.Errorf("unexpected diff:\n%s", out)
	}
	if !strings.HasPrefix(out, "--- a/scene.yaml\n+++ b/scene.yaml\n") {
		t.Errorf("unexpected header:\n%s", out)
	}
}

func TestChanges(t *testing.T) {
	before := mustParse(t, "model: gpt\nt: 1\nitems: [a, b]\nold: x\nshape: 1\n")
	after := mustParse(t, "model: gpt\nt: 2\nitems: [a, c, d]\nshape: {k: v}\nnew: true\n")

	got := Changes(before, after)
	want := []Change{
		{Path: "t", Kind: ChangeUpdated, Before: "1", After: "2"},
		{Path: "items[1]", Kind: ChangeUpdated, Before: "b", After: "c"},
		{Path: "items[2]", Kind: ChangeAdded, After: "d"},
		{Path: "shape", Kind: ChangeUpdated, Before: "1", After: "{1}"},
		{Path: "shape.k", Kind: ChangeAdded, After: "v"},
		{Path: "new", Kind: ChangeAdded, After: "true"},
		{Path: "old", Kind: ChangeRemoved, Before: "x"},
	}
	if len(got) != len(want) {
		t.Fatalf("Changes() = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func BenchmarkComputeDiff_Small(b *testing.B) {
	engine := NewEngine(3)
	for i := 0; i < b.N; i++ {
		engine.ClearCache()
		engine.ComputeDiff("old", "new", "a: 1\nb: 2\nc: 3", "a: 1\nb: 9\nc: 3")
	}
}
