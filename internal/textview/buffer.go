package textview

import "strings"

// IndentUnit is the text inserted or removed by one indent step.
const IndentUnit = "  "

// Buffer is an editable rune buffer with a cursor and a selection anchor.
// Offsets are rune offsets into the text; anchor equals cursor when nothing
// is selected.
type Buffer struct {
	text    []rune
	cursor  int
	anchor  int
	goalCol int
}

// NewBuffer returns a buffer holding s with the cursor at the start.
func NewBuffer(s string) *Buffer {
	return &Buffer{text: []rune(s), goalCol: -1}
}

func (b *Buffer) String() string { return string(b.text) }

// Len returns the length in runes.
func (b *Buffer) Len() int { return len(b.text) }

// Cursor returns the cursor offset.
func (b *Buffer) Cursor() int { return b.cursor }

// Anchor returns the selection anchor offset.
func (b *Buffer) Anchor() int { return b.anchor }

// Selection returns the ordered selection bounds.
func (b *Buffer) Selection() (start, end int) {
	if b.anchor < b.cursor {
		return b.anchor, b.cursor
	}
	return b.cursor, b.anchor
}

// HasSelection reports whether a non-empty range is selected.
func (b *Buffer) HasSelection() bool { return b.anchor != b.cursor }

// SelectedText returns the selected text.
func (b *Buffer) SelectedText() string {
	s, e := b.Selection()
	return string(b.text[s:e])
}

func (b *Buffer) clamp(pos int) int {
	return max(0, min(pos, len(b.text)))
}

// SetCursor moves the cursor to pos and clears the selection.
func (b *Buffer) SetCursor(pos int) {
	b.cursor = b.clamp(pos)
	b.anchor = b.cursor
	b.goalCol = -1
}

// Select sets the anchor and cursor, clamping both.
func (b *Buffer) Select(anchor, cursor int) {
	b.anchor = b.clamp(anchor)
	b.cursor = b.clamp(cursor)
	b.goalCol = -1
}

// SelectAll selects the whole text.
func (b *Buffer) SelectAll() { b.Select(0, len(b.text)) }

// ClearSelection collapses the selection onto the cursor.
func (b *Buffer) ClearSelection() { b.anchor = b.cursor }

// Replace swaps the whole text and keeps the previous cursor and anchor
// offsets, clamped to the new length.
func (b *Buffer) Replace(s string) {
	b.text = []rune(s)
	b.cursor = b.clamp(b.cursor)
	b.anchor = b.clamp(b.anchor)
	b.goalCol = -1
}

// Insert replaces the selection with s and leaves the cursor after it.
func (b *Buffer) Insert(s string) {
	start, end := b.Selection()
	ins := []rune(s)
	out := make([]rune, 0, len(b.text)-(end-start)+len(ins))
	out = append(out, b.text[:start]...)
	out = append(out, ins...)
	out = append(out, b.text[end:]...)
	b.text = out
	b.SetCursor(start + len(ins))
}

// Backspace deletes the selection or the rune before the cursor.
func (b *Buffer) Backspace() bool {
	if b.HasSelection() {
		b.Insert("")
		return true
	}
	if b.cursor == 0 {
		return false
	}
	b.Select(b.cursor-1, b.cursor)
	b.Insert("")
	return true
}

// DeleteForward deletes the selection or the rune after the cursor.
func (b *Buffer) DeleteForward() bool {
	if b.HasSelection() {
		b.Insert("")
		return true
	}
	if b.cursor == len(b.text) {
		return false
	}
	b.Select(b.cursor, b.cursor+1)
	b.Insert("")
	return true
}

func (b *Buffer) moveTo(pos int, extend bool) {
	b.cursor = b.clamp(pos)
	if !extend {
		b.anchor = b.cursor
	}
}

// Move shifts the cursor by delta runes. Without extend a selection
// collapses to the edge in the direction of travel.
func (b *Buffer) Move(delta int, extend bool) {
	b.goalCol = -1
	if !extend && b.HasSelection() {
		s, e := b.Selection()
		if delta < 0 {
			b.SetCursor(s)
		} else {
			b.SetCursor(e)
		}
		return
	}
	b.moveTo(b.cursor+delta, extend)
}

// MoveLine moves the cursor up or down by delta lines, keeping the column
// it had when vertical movement started.
func (b *Buffer) MoveLine(delta int, extend bool) {
	line, col := b.LineCol(b.cursor)
	if b.goalCol < 0 {
		b.goalCol = col
	}
	goal := b.goalCol
	target := line + delta
	lines := b.lineCount()
	switch {
	case target < 0:
		b.moveTo(0, extend)
	case target >= lines:
		b.moveTo(len(b.text), extend)
	default:
		b.moveTo(b.Offset(target, goal), extend)
	}
	b.goalCol = goal
}

// LineStart moves to the start of the cursor's line.
func (b *Buffer) LineStart(extend bool) {
	b.goalCol = -1
	b.moveTo(b.lineStart(b.cursor), extend)
}

// LineEnd moves to the end of the cursor's line.
func (b *Buffer) LineEnd(extend bool) {
	b.goalCol = -1
	b.moveTo(b.lineEnd(b.cursor), extend)
}

// Newline breaks the line at the cursor and repeats the current line's
// leading whitespace on the new line.
func (b *Buffer) Newline() {
	start, _ := b.Selection()
	ls := b.lineStart(start)
	ws := ls
	for ws < start && (b.text[ws] == ' ' || b.text[ws] == '\t') {
		ws++
	}
	b.Insert("\n" + string(b.text[ls:ws]))
}

// touchedLines returns the first and last line indices covered by the
// selection. A selection ending at the start of a line does not touch it.
func (b *Buffer) touchedLines() (first, last int) {
	s, e := b.Selection()
	first, _ = b.LineCol(s)
	last, col := b.LineCol(e)
	if e > s && col == 0 && last > first {
		last--
	}
	return first, last
}

// Indent adds one indent unit to every line the selection touches. With a
// selection, the selection then spans the whole modified line range;
// without one the cursor moves with its text.
func (b *Buffer) Indent() {
	b.reindent(func(line []rune) ([]rune, int) {
		return append([]rune(IndentUnit), line...), len(IndentUnit)
	})
}

// Outdent removes up to one indent unit from every line the selection
// touches. A leading tab counts as one unit.
func (b *Buffer) Outdent() {
	b.reindent(func(line []rune) ([]rune, int) {
		n := 0
		if len(line) > 0 && line[0] == '\t' {
			n = 1
		} else {
			for n < len(IndentUnit) && n < len(line) && line[n] == ' ' {
				n++
			}
		}
		return line[n:], -n
	})
}

func (b *Buffer) reindent(edit func(line []rune) ([]rune, int)) {
	selecting := b.HasSelection()
	first, last := b.touchedLines()
	curLine, curCol := b.LineCol(b.cursor)

	lines := strings.Split(string(b.text), "\n")
	shift := 0
	for i := first; i <= last && i < len(lines); i++ {
		out, delta := edit([]rune(lines[i]))
		lines[i] = string(out)
		if i == curLine {
			shift = delta
		}
	}
	b.text = []rune(strings.Join(lines, "\n"))

	if selecting {
		b.Select(b.Offset(first, 0), b.lineEnd(b.Offset(last, 0)))
		return
	}
	b.SetCursor(b.Offset(curLine, max(0, curCol+shift)))
}

// LineCol converts an offset to a zero-based line and column.
func (b *Buffer) LineCol(pos int) (line, col int) {
	pos = b.clamp(pos)
	start := 0
	for i := 0; i < pos; i++ {
		if b.text[i] == '\n' {
			line++
			start = i + 1
		}
	}
	return line, pos - start
}

// Offset converts a line and column to an offset. Columns past the end of
// the line land on its end.
func (b *Buffer) Offset(line, col int) int {
	pos := 0
	for l := 0; l < line; l++ {
		i := pos
		for i < len(b.text) && b.text[i] != '\n' {
			i++
		}
		if i == len(b.text) {
			return len(b.text)
		}
		pos = i + 1
	}
	return min(pos+max(0, col), b.lineEnd(pos))
}

// Lines returns the text split into lines.
func (b *Buffer) Lines() []string {
	return strings.Split(string(b.text), "\n")
}

func (b *Buffer) lineCount() int {
	return strings.Count(string(b.text), "\n") + 1
}

func (b *Buffer) lineStart(pos int) int {
	for pos > 0 && b.text[pos-1] != '\n' {
		pos--
	}
	return pos
}

func (b *Buffer) lineEnd(pos int) int {
	for pos < len(b.text) && b.text[pos] != '\n' {
		pos++
	}
	return pos
}
