package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promptscene/cmd/scene/ui"
	"promptscene/internal/document"
	"promptscene/internal/store"
	"promptscene/internal/template"
	"promptscene/internal/watch"
)

var (
	templateFile string
	sceneName    string
)

// editCmd opens the split-pane editor
var editCmd = &cobra.Command{
	Use:   "edit <file>",
	Short: "Edit a scene in the split-pane editor",
	Long: `Opens the scene in a structured form next to its YAML text. Edits on
either side show up on the other. Changes made to the file by other
programs are picked up while the editor runs.

With --template the preview pane (ctrl+p) shows the template filled from
the scene. With --scene the stored scene is loaded into the file, and
ctrl+s saves to the store as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVarP(&templateFile, "template", "t", "", "Prompt template to preview")
	editCmd.Flags().StringVarP(&sceneName, "scene", "s", "", "Stored scene to edit")
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	s := settings()
	doc := document.NewManager("",
		document.WithCodec(document.NewYAMLCodec(s.Editor.Indent)),
		document.WithDebounce(s.GetDebounce()),
	)
	defer doc.Close()

	fsync, err := watch.New(args[0], doc, watch.WithDebounce(s.GetWatchDebounce()))
	if err != nil {
		return err
	}
	if err := fsync.Load(); err != nil {
		return err
	}

	opts := ui.Options{Doc: doc, File: fsync}

	if sceneName != "" {
		st, err := store.Open(s.StorePath(workspaceDir()))
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := st.OpenDocument(ctx, sceneName, doc); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			logger.Info("new scene", zap.String("name", sceneName))
		}
		opts.Store = st
		opts.SceneName = sceneName
	}

	if templateFile != "" {
		data, err := os.ReadFile(templateFile)
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}
		dark, ok := s.DarkMode()
		if !ok {
			dark = ui.DetectTheme().IsDark
		}
		p, err := template.NewPreviewer(template.PreviewOptions{
			Width: s.UI.PreviewWidth,
			Dark:  dark,
			Style: s.UI.PreviewStyle,
		})
		if err != nil {
			return err
		}
		opts.Template = string(data)
		opts.Previewer = p
	}

	if dark, ok := s.DarkMode(); ok {
		theme := ui.LightTheme()
		if dark {
			theme = ui.DarkTheme()
		}
		styles := ui.NewStyles(theme)
		opts.Styles = &styles
	}

	if err := fsync.Start(ctx); err != nil {
		return err
	}
	defer fsync.Stop()

	model := ui.New(opts)
	defer model.Close()

	logger.Debug("editor starting", zap.String("file", fsync.Path()))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}

	st := fsync.Stats()
	logger.Info("editor closed",
		zap.Int("writes", st.Writes),
		zap.Int("reloads", st.Reloads))
	return nil
}
