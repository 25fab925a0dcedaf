// Package template fills {{path}} placeholders in prompt text from a scene
// document and renders the result as markdown.
package template

import (
	"regexp"
	"strings"

	"promptscene/internal/document"
	"promptscene/internal/logging"
)

// placeholderRe matches {{path}} with optional inner whitespace.
var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Placeholder returns the template reference for path.
func Placeholder(path string) string {
	return "{{" + path + "}}"
}

// Result is the outcome of Render.
type Result struct {
	Text string
	// Unresolved lists paths with no value in the tree, in order of first
	// use. Their placeholders are left in Text as written.
	Unresolved []string
	// Substituted counts the placeholders that were replaced.
	Substituted int
}

// Complete reports whether every placeholder was filled.
func (r Result) Complete() bool { return len(r.Unresolved) == 0 }

// Render substitutes every placeholder in tmpl with the value at its path.
// Scalars are written as their field text and containers as inline YAML.
func Render(tmpl string, tree *document.Node) Result {
	var res Result
	if !strings.Contains(tmpl, "{{") {
		res.Text = tmpl
		return res
	}

	seen := make(map[string]bool)
	res.Text = placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		path := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := document.Resolve(tree, path)
		if !ok {
			if !seen[path] {
				seen[path] = true
				res.Unresolved = append(res.Unresolved, path)
			}
			return m
		}
		s, err := valueText(v)
		if err != nil {
			logging.TemplateWarn("render %s: %v", path, err)
			return m
		}
		res.Substituted++
		return s
	})

	if len(res.Unresolved) > 0 {
		logging.TemplateWarn("unresolved placeholders: %s", strings.Join(res.Unresolved, ", "))
	}
	logging.Template("rendered %d placeholders", res.Substituted)
	return res
}

func valueText(v *document.Node) (string, error) {
	if v.Kind().IsContainer() {
		return document.Inline(v)
	}
	if v.Kind() == document.KindNull {
		return "", nil
	}
	return v.Text(), nil
}

// Placeholders returns the distinct paths tmpl refers to, in order of first
// use.
func Placeholders(tmpl string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Field is one addressable leaf of a document.
type Field struct {
	Path  string
	Kind  document.Kind
	Value string
}

// Flatten lists the leaves of tree in document order. Empty containers
// count as leaves so every path a template can use appears once.
func Flatten(tree *document.Node) []Field {
	var out []Field
	document.Walk(tree, func(path string, n *document.Node) {
		if n.Kind().IsContainer() && n.Len() > 0 {
			return
		}
		s, err := valueText(n)
		if err != nil {
			s = n.Text()
		}
		out = append(out, Field{Path: path, Kind: n.Kind(), Value: s})
	})
	return out
}
