package template

import (
	"fmt"

	"github.com/charmbracelet/glamour"

	"promptscene/internal/document"
)

// Previewer renders filled templates as terminal markdown.
type Previewer struct {
	renderer *glamour.TermRenderer
	width    int
}

// PreviewOptions configures a Previewer.
type PreviewOptions struct {
	Width int
	Dark  bool
	// Style names a glamour style ("dark", "light", "notty", ...) or a JSON
	// style file. It overrides Dark when set.
	Style string
}

// NewPreviewer builds a glamour renderer for the given options.
func NewPreviewer(opts PreviewOptions) (*Previewer, error) {
	width := opts.Width
	if width <= 0 {
		width = 80
	}

	style := glamour.WithAutoStyle()
	switch {
	case opts.Style != "":
		style = glamour.WithStylePath(opts.Style)
	case !opts.Dark:
		style = glamour.WithStylePath("light")
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return &Previewer{renderer: r, width: width}, nil
}

// Width returns the wrap width.
func (p *Previewer) Width() int { return p.width }

// Markdown renders markdown text.
func (p *Previewer) Markdown(md string) (string, error) {
	out, err := p.renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

// Preview fills tmpl from tree and renders it.
func (p *Previewer) Preview(tmpl string, tree *document.Node) (string, Result, error) {
	res := Render(tmpl, tree)
	out, err := p.Markdown(res.Text)
	return out, res, err
}
