package ui

import "testing"

func TestDetectTheme(t *testing.T) {
	tests := []struct {
		name     string
		darkMode string
		colorfg  string
		wantDark bool
	}{
		{"default light", "", "", false},
		{"explicit dark", "1", "", true},
		{"explicit light wins over terminal", "false", "15;0", false},
		{"dark terminal background", "", "15;0", true},
		{"light terminal background", "", "0;15", false},
		{"unparseable setting falls through", "maybe", "15;8", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SCENE_DARK_MODE", tt.darkMode)
			t.Setenv("COLORFGBG", tt.colorfg)
			if got := DetectTheme().IsDark; got != tt.wantDark {
				t.Errorf("DetectTheme().IsDark = %v, want %v", got, tt.wantDark)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	lc := NewLayoutConfig(120, 30)
	left, right := lc.PaneWidths()
	if left+right != 120 || left != 60 {
		t.Errorf("PaneWidths() = %d, %d", left, right)
	}
	if lc.PaneHeight() != 27 {
		t.Errorf("PaneHeight() = %d", lc.PaneHeight())
	}
	if w, h := InnerSize(60, 27); w != 56 || h != 24 {
		t.Errorf("InnerSize() = %d, %d", w, h)
	}
	if !NewLayoutConfig(40, 30).TooSmall() {
		t.Error("40 columns should be too small")
	}
}
