package ui

// Layout constants for the split-pane editor
const (
	HeaderHeight = 1
	FooterHeight = 2

	// Each pane has a rounded border and one column of padding per side.
	PaneBorderWidth = 2
	PanePaddingH    = 1
	PaneTitleHeight = 1

	SplitPaneLeftRatio = 0.5

	MinimumTerminalWidth  = 60
	MinimumTerminalHeight = 12
	CompactModeWidth      = 100
)

// LayoutConfig provides computed layout dimensions based on terminal size
type LayoutConfig struct {
	TerminalWidth  int
	TerminalHeight int
	IsCompact      bool
}

// NewLayoutConfig creates a layout configuration for the given terminal size
func NewLayoutConfig(width, height int) LayoutConfig {
	return LayoutConfig{
		TerminalWidth:  width,
		TerminalHeight: height,
		IsCompact:      width < CompactModeWidth,
	}
}

// TooSmall reports whether the terminal cannot fit two panes.
func (lc LayoutConfig) TooSmall() bool {
	return lc.TerminalWidth < MinimumTerminalWidth || lc.TerminalHeight < MinimumTerminalHeight
}

// PaneWidths returns the outer widths of the left and right panes.
func (lc LayoutConfig) PaneWidths() (left, right int) {
	left = int(float64(lc.TerminalWidth) * SplitPaneLeftRatio)
	right = lc.TerminalWidth - left
	return left, right
}

// PaneHeight returns the outer height of both panes.
func (lc LayoutConfig) PaneHeight() int {
	return max(lc.TerminalHeight-HeaderHeight-FooterHeight, 3)
}

// InnerSize returns the content area of a pane with the given outer size.
func InnerSize(outerWidth, outerHeight int) (width, height int) {
	width = max(outerWidth-PaneBorderWidth-2*PanePaddingH, 1)
	height = max(outerHeight-PaneBorderWidth-PaneTitleHeight, 1)
	return width, height
}
