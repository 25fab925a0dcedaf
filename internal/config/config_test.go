package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Editor.Indent != 2 {
		t.Errorf("expected Indent=2, got %d", cfg.Editor.Indent)
	}
	if cfg.UI.Theme != "auto" {
		t.Errorf("expected Theme=auto, got %s", cfg.UI.Theme)
	}
	if cfg.GetDebounce() != 300*time.Millisecond {
		t.Errorf("expected 300ms debounce, got %v", cfg.GetDebounce())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("SCENE_STORE_PATH", "")
	t.Setenv("SCENE_DEBOUNCE", "")
	t.Setenv("SCENE_DARK_MODE", "")

	tmpDir := t.TempDir()
	path := DefaultPath(tmpDir)

	cfg := DefaultConfig()
	cfg.Editor.Debounce = "1s"
	cfg.UI.Theme = "light"
	cfg.Logging.DebugMode = true
	cfg.Logging.Categories = map[string]bool{"store": false}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.GetDebounce() != time.Second {
		t.Errorf("expected 1s debounce, got %v", loaded.GetDebounce())
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("expected Theme=light, got %s", loaded.UI.Theme)
	}
	if loaded.Logging.IsCategoryEnabled("store") {
		t.Error("store category should be disabled")
	}
	if !loaded.Logging.IsCategoryEnabled("document") {
		t.Error("unlisted categories should be enabled in debug mode")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("SCENE_STORE_PATH", "")
	t.Setenv("SCENE_DEBOUNCE", "")
	t.Setenv("SCENE_DARK_MODE", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != DefaultConfig().Store.Path {
		t.Errorf("expected default store path, got %s", cfg.Store.Path)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("SCENE_DEBOUNCE", "")
	t.Setenv("SCENE_DARK_MODE", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ui:\n  theme: dark\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("expected Theme=dark, got %s", cfg.UI.Theme)
	}
	if cfg.Editor.Indent != 2 || cfg.Editor.Debounce != "300ms" {
		t.Errorf("editor defaults lost: %+v", cfg.Editor)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("editor: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad debounce", func(c *Config) { c.Editor.Debounce = "soon" }},
		{"bad watch debounce", func(c *Config) { c.Editor.WatchDebounce = "later" }},
		{"indent too small", func(c *Config) { c.Editor.Indent = 1 }},
		{"unknown theme", func(c *Config) { c.UI.Theme = "neon" }},
		{"no store path", func(c *Config) { c.Store.Path = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetDebounce_Fallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Editor.Debounce = "garbage"
	if cfg.GetDebounce() != 300*time.Millisecond {
		t.Errorf("expected fallback, got %v", cfg.GetDebounce())
	}
	cfg.Editor.WatchDebounce = "0s"
	if cfg.GetWatchDebounce() != 200*time.Millisecond {
		t.Errorf("expected fallback, got %v", cfg.GetWatchDebounce())
	}
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()
	ws := t.TempDir()
	if got, want := cfg.StorePath(ws), filepath.Join(ws, ".scene", "scenes.db"); got != want {
		t.Errorf("StorePath() = %s, want %s", got, want)
	}
	cfg.Store.Path = ":memory:"
	if cfg.StorePath(ws) != ":memory:" {
		t.Error(":memory: should pass through")
	}
}

func TestLoggingConfig_DisabledOutsideDebugMode(t *testing.T) {
	lc := LoggingConfig{Categories: map[string]bool{"store": true}}
	if lc.IsCategoryEnabled("store") {
		t.Error("categories are off unless debug_mode is set")
	}
}
