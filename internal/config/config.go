package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all promptscene configuration.
type Config struct {
	// Document editing
	Editor EditorConfig `yaml:"editor"`

	// Terminal UI
	UI UIConfig `yaml:"ui"`

	// Scene store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EditorConfig configures the document manager and the file watcher.
type EditorConfig struct {
	Debounce      string `yaml:"debounce"`       // text/tree conversion delay
	WatchDebounce string `yaml:"watch_debounce"` // coalescing window for file events
	Indent        int    `yaml:"indent"`         // YAML dump indent
}

// UIConfig configures the split-pane editor.
type UIConfig struct {
	Theme        string `yaml:"theme"` // auto, dark, light
	PreviewStyle string `yaml:"preview_style"`
	PreviewWidth int    `yaml:"preview_width"`
	ShowHelp     bool   `yaml:"show_help"`
}

// StoreConfig configures the scene store.
type StoreConfig struct {
	Path      string `yaml:"path"`
	BackupDir string `yaml:"backup_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Editor: EditorConfig{
			Debounce:      "300ms",
			WatchDebounce: "200ms",
			Indent:        2,
		},
		UI: UIConfig{
			Theme:        "auto",
			PreviewWidth: 80,
			ShowHelp:     true,
		},
		Store: StoreConfig{
			Path: ".scene/scenes.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the config location for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".scene", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// A missing file leaves the defaults in place.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("SCENE_STORE_PATH"); path != "" {
		c.Store.Path = path
	}
	if d := os.Getenv("SCENE_DEBOUNCE"); d != "" {
		c.Editor.Debounce = d
	}
	if v := os.Getenv("SCENE_DARK_MODE"); v != "" {
		if dark, err := strconv.ParseBool(v); err == nil {
			if dark {
				c.UI.Theme = "dark"
			} else {
				c.UI.Theme = "light"
			}
		}
	}
}

// GetDebounce returns the conversion delay as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Editor.Debounce)
	if err != nil || d < 0 {
		return 300 * time.Millisecond
	}
	return d
}

// GetWatchDebounce returns the file event window as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Editor.WatchDebounce)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// StorePath resolves the store path against the workspace.
func (c *Config) StorePath(workspace string) string {
	if c.Store.Path == ":memory:" || filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(workspace, c.Store.Path)
}

// ValidThemes lists the accepted ui.theme values.
var ValidThemes = []string{"auto", "dark", "light"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Editor.Debounce); err != nil {
		return fmt.Errorf("invalid editor.debounce %q: %w", c.Editor.Debounce, err)
	}
	if c.Editor.WatchDebounce != "" {
		if _, err := time.ParseDuration(c.Editor.WatchDebounce); err != nil {
			return fmt.Errorf("invalid editor.watch_debounce %q: %w", c.Editor.WatchDebounce, err)
		}
	}
	if c.Editor.Indent < 2 || c.Editor.Indent > 9 {
		return fmt.Errorf("invalid editor.indent %d (must be 2-9)", c.Editor.Indent)
	}

	validTheme := false
	for _, t := range ValidThemes {
		if c.UI.Theme == t {
			validTheme = true
			break
		}
	}
	if !validTheme {
		return fmt.Errorf("invalid ui.theme: %s (valid: %v)", c.UI.Theme, ValidThemes)
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path not configured (set SCENE_STORE_PATH)")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// DarkMode resolves the theme. ok is false for "auto".
func (c *Config) DarkMode() (dark, ok bool) {
	switch c.UI.Theme {
	case "dark":
		return true, true
	case "light":
		return false, true
	}
	return false, false
}
