package textview

import (
	"regexp"
	"strings"
)

// Class is the syntax class of a rune in the overlay.
type Class int

const (
	ClassPlain Class = iota
	ClassComment
	ClassListMarker
	ClassKey
	ClassBool
	ClassNull
	ClassNumber
	ClassString
)

var (
	listMarkerRe = regexp.MustCompile(`^(\s*)(-)(\s|$)`)
	keyRe        = regexp.MustCompile(`^([^\s#:'"\-][^#:]*?|"[^"]*"|'[^']*')\s*:(\s|$)`)
	boolRe       = regexp.MustCompile(`^(?i:true|false|yes|no|on|off)$`)
	nullRe       = regexp.MustCompile(`^(null|Null|NULL|~)$`)
	numberRe     = regexp.MustCompile(`^[-+]?(\d[\d_]*(\.\d*)?|\.\d+)([eE][-+]?\d+)?$|^[-+]?\.(inf|Inf|INF)$|^\.(nan|NaN|NAN)$|^0x[0-9a-fA-F]+$|^0o[0-7]+$`)
	quotedRe     = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^']|'')*'`)
)

// Classify assigns a class to every rune of one line. It works from the
// literal text with line-level heuristics and never fails; text that does
// not match any rule stays plain.
func Classify(line string) []Class {
	runes := []rune(line)
	out := make([]Class, len(runes))

	code := commentStart(runes)
	for i := code; i < len(runes); i++ {
		out[i] = ClassComment
	}
	body := string(runes[:code])

	pos := 0
	for {
		m := listMarkerRe.FindStringSubmatchIndex(body[pos:])
		if m == nil {
			break
		}
		out[runeIndex(body, pos+m[4])] = ClassListMarker
		pos += m[5]
		for pos < len(body) && body[pos] == ' ' {
			pos++
		}
	}

	rest := body[pos:]
	trimmed := strings.TrimLeft(rest, " \t")
	pos += len(rest) - len(trimmed)

	if m := keyRe.FindStringSubmatchIndex(body[pos:]); m != nil {
		fill(out, body, pos+m[2], pos+m[3], ClassKey)
		pos += m[1]
	}

	classifyValue(out, body, pos)
	return out
}

// classifyValue colours the scalar that starts at byte offset from.
func classifyValue(out []Class, body string, from int) {
	value := strings.TrimSpace(body[from:])
	if value == "" {
		return
	}
	start := from + strings.Index(body[from:], value)
	end := start + len(value)

	switch {
	case boolRe.MatchString(value):
		fill(out, body, start, end, ClassBool)
	case nullRe.MatchString(value):
		fill(out, body, start, end, ClassNull)
	case numberRe.MatchString(value):
		fill(out, body, start, end, ClassNumber)
	default:
		for _, m := range quotedRe.FindAllStringIndex(value, -1) {
			fill(out, body, start+m[0], start+m[1], ClassString)
		}
	}
}

// commentStart returns the rune index where a comment begins, or len(runes).
// A '#' starts a comment at the line start or after whitespace, outside
// quotes.
func commentStart(runes []rune) int {
	var quote rune
	for i, r := range runes {
		switch {
		case quote != 0:
			if r == quote && (quote == '\'' || i == 0 || runes[i-1] != '\\') {
				quote = 0
			}
		case r == '"' || r == '\'':
			if i == 0 || isQuoteBoundary(runes[i-1]) {
				quote = r
			}
		case r == '#':
			if i == 0 || runes[i-1] == ' ' || runes[i-1] == '\t' {
				return i
			}
		}
	}
	return len(runes)
}

func isQuoteBoundary(r rune) bool {
	switch r {
	case ' ', '\t', ':', '[', '{', ',', '-':
		return true
	}
	return false
}

// fill marks the runes in byte range [from, to) of s.
func fill(out []Class, s string, from, to int, c Class) {
	for i := runeIndex(s, from); i < runeIndex(s, to); i++ {
		out[i] = c
	}
}

func runeIndex(s string, byteOff int) int {
	return len([]rune(s[:byteOff]))
}
