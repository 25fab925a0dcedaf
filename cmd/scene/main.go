package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"promptscene/internal/config"
	"promptscene/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	// Loaded in PersistentPreRunE
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scene",
	Short: "promptscene - edit structured scene documents",
	Long: `promptscene keeps a YAML scene document and its structured form in step.

Edit a scene in the split-pane editor, query and modify it from scripts,
fill prompt templates from it, and keep named versions in a local store.

Run "scene edit <file>" to open the editor.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspaceDir()
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		path := config.DefaultPath(ws)
		cfg, err = config.Load(path)
		if err != nil {
			logging.BootError("config load failed: %v", err)
			return err
		}
		if err := cfg.Validate(); err != nil {
			logging.BootError("config %s is invalid: %v", path, err)
			return fmt.Errorf("invalid config: %w", err)
		}
		logging.Boot("config loaded from %s (debounce %s, store %s)", path, cfg.GetDebounce(), cfg.StorePath(ws))
		logging.CLI("%s %s", cmd.CommandPath(), strings.Join(args, " "))
		logger.Debug("config loaded",
			zap.String("workspace", ws),
			zap.Duration("debounce", cfg.GetDebounce()))
		if cfg.Logging.DebugMode {
			var on []string
			for _, c := range logging.AllCategories {
				if cfg.Logging.IsCategoryEnabled(string(c)) {
					on = append(on, string(c))
				}
			}
			logger.Debug("file logging enabled", zap.Strings("categories", on))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	for _, c := range []*cobra.Command{setCmd, addItemCmd, rmItemCmd, addPropCmd, rmPropCmd} {
		c.Flags().BoolVar(&dryRun, "dry-run", false, "Print the diff instead of writing the file")
	}
	getCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of YAML")
	renderCmd.Flags().BoolVar(&strict, "strict", false, "Fail when a placeholder is unresolved")
	renderCmd.Flags().BoolVar(&markdown, "markdown", false, "Render the result as terminal markdown")
	renderCmd.Flags().StringVar(&fromStore, "scene", "", "Fill from a stored scene instead of a file")

	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(addItemCmd)
	rootCmd.AddCommand(rmItemCmd)
	rootCmd.AddCommand(addPropCmd)
	rootCmd.AddCommand(rmPropCmd)
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(storeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// workspaceDir returns the --workspace flag or the current directory.
func workspaceDir() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// settings returns the loaded config, or defaults when a command runs
// without the root pre-run (tests).
func settings() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
