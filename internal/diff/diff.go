// Package diff computes line diffs of scene text with sergi/go-diff and
// prints them in unified format.
package diff

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType is the kind of a diff line.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is one line of a hunk. LineNum is the old line number for context
// and removed lines and the new line number for added lines.
type Line struct {
	LineNum int
	Content string
	Type    LineType
}

// Hunk is a group of nearby changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff is the diff between two versions of one scene.
type FileDiff struct {
	OldPath  string
	NewPath  string
	Hunks    []Hunk
	IsNew    bool
	IsDelete bool
}

// Empty reports whether the versions are identical.
func (d *FileDiff) Empty() bool { return len(d.Hunks) == 0 }

// Stats counts added and removed lines.
func (d *FileDiff) Stats() (added, removed int) {
	for _, h := range d.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return added, removed
}

// Engine computes diffs and caches results for repeated input pairs.
type Engine struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	context int
	cache   sync.Map
}

type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine returns an engine that keeps contextLines of context around
// each change (3 when negative).
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 3
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp, context: contextLines}
}

// DefaultEngine uses three lines of context.
var DefaultEngine = NewEngine(3)

// ComputeDiff diffs oldContent against newContent line by line.
func (e *Engine) ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	key := cacheKey{hash(oldContent), hash(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		result := *cached.(*FileDiff)
		result.OldPath = oldPath
		result.NewPath = newPath
		return &result
	}

	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	fd := &FileDiff{
		OldPath:  oldPath,
		NewPath:  newPath,
		Hunks:    groupIntoHunks(toOperations(diffs), e.context),
		IsNew:    oldContent == "" && newContent != "",
		IsDelete: newContent == "" && oldContent != "",
	}
	e.cache.Store(key, fd)
	return fd
}

// ComputeDiff diffs with the default engine.
func ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	return DefaultEngine.ComputeDiff(oldPath, newPath, oldContent, newContent)
}

// ClearCache drops cached results.
func (e *Engine) ClearCache() {
	e.cache.Range(func(k, _ any) bool {
		e.cache.Delete(k)
		return true
	})
}

type operation struct {
	typ     LineType
	oldLine int
	newLine int
	content string
}

func toOperations(diffs []diffmatchpatch.Diff) []operation {
	var ops []operation
	oldLine, newLine := 0, 0
	for _, d := range diffs {
		lines := strings.SplitAfter(d.Text, "\n")
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = lines[:n-1]
		}
		for _, line := range lines {
			content := strings.TrimSuffix(line, "\n")
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, operation{LineContext, oldLine, newLine, content})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, operation{LineRemoved, oldLine, -1, content})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, operation{LineAdded, -1, newLine, content})
				newLine++
			}
		}
	}
	return ops
}

// groupIntoHunks gathers changes whose gap is at most twice the context
// into one hunk, so hunks never share context lines.
func groupIntoHunks(ops []operation, context int) []Hunk {
	var changes []int
	for i, op := range ops {
		if op.typ != LineContext {
			changes = append(changes, i)
		}
	}

	var hunks []Hunk
	for i := 0; i < len(changes); {
		last := changes[i]
		j := i
		for j+1 < len(changes) && changes[j+1]-last-1 <= 2*context {
			j++
			last = changes[j]
		}
		lo := max(changes[i]-context, 0)
		hi := min(last+context, len(ops)-1)
		hunks = append(hunks, buildHunk(ops, lo, hi))
		i = j + 1
	}
	return hunks
}

func buildHunk(ops []operation, lo, hi int) Hunk {
	oldBefore, newBefore := 0, 0
	for _, op := range ops[:lo] {
		if op.typ != LineAdded {
			oldBefore++
		}
		if op.typ != LineRemoved {
			newBefore++
		}
	}

	h := Hunk{OldStart: oldBefore + 1, NewStart: newBefore + 1}
	for _, op := range ops[lo : hi+1] {
		num := op.oldLine + 1
		if op.typ == LineAdded {
			num = op.newLine + 1
		}
		h.Lines = append(h.Lines, Line{LineNum: num, Content: op.content, Type: op.typ})
		if op.typ != LineAdded {
			h.OldCount++
		}
		if op.typ != LineRemoved {
			h.NewCount++
		}
	}
	// An empty side points at the line before the hunk.
	if h.OldCount == 0 {
		h.OldStart = oldBefore
	}
	if h.NewCount == 0 {
		h.NewStart = newBefore
	}
	return h
}

// Unified formats the diff in unified format. An empty diff formats as "".
func (d *FileDiff) Unified() string {
	if d.Empty() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", orDevNull(d.OldPath), orDevNull(d.NewPath))
	for _, h := range d.Hunks {
		sb.WriteString(h.Header())
		sb.WriteString("\n")
		for _, l := range h.Lines {
			sb.WriteString(l.Prefix())
			sb.WriteString(l.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Header returns the hunk's "@@ -a,b +c,d @@" line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%s +%s @@", span(h.OldStart, h.OldCount), span(h.NewStart, h.NewCount))
}

// Prefix returns the unified-format marker for the line.
func (l Line) Prefix() string {
	switch l.Type {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	}
	return " "
}

func span(start, count int) string {
	if count == 1 {
		return fmt.Sprint(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

func orDevNull(p string) string {
	if p == "" {
		return "/dev/null"
	}
	return p
}

// hash is FNV-1a.
func hash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// ComputeWordLevelDiff diffs two single lines character by character with
// semantic cleanup, for highlighting the changed part of a modified line.
func (e *Engine) ComputeWordLevelDiff(oldLine, newLine string) []diffmatchpatch.Diff {
	diffs := e.dmp.DiffMain(oldLine, newLine, false)
	return e.dmp.DiffCleanupSemantic(diffs)
}
