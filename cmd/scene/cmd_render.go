package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"promptscene/internal/diff"
	"promptscene/internal/document"
	"promptscene/internal/store"
	"promptscene/internal/template"
)

var (
	strict    bool
	markdown  bool
	fromStore string
)

var renderCmd = &cobra.Command{
	Use:   "render [file] <template>",
	Short: "Fill a prompt template from a scene",
	Long: `Replaces every {{path}} placeholder in the template with the scene's
value at that path. Unresolved placeholders are left as written and listed
on stderr.

Examples:
  scene render prompt.yaml system.md
  scene render --scene greeting system.md --markdown`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRender,
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check that scene files parse",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Compare two scenes",
	Long: `Prints a unified diff of the two scenes after normalizing both through
the YAML codec, followed by the list of changed paths. Comments and
formatting differences do not show up.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
	defer cancel()

	var tree *document.Node
	tmplFile := args[len(args)-1]
	switch {
	case fromStore != "":
		if len(args) != 1 {
			return fmt.Errorf("--scene takes only the template argument")
		}
		t, err := storedTree(ctx, fromStore)
		if err != nil {
			return err
		}
		tree = t
	case len(args) == 2:
		m, _, err := openScene(args[0], false)
		if err != nil {
			return err
		}
		tree = m.Tree()
		m.Close()
	default:
		return fmt.Errorf("a scene file or --scene is required")
	}

	data, err := os.ReadFile(tmplFile)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	res := template.Render(string(data), tree)
	out := res.Text
	if markdown {
		dark, ok := settings().DarkMode()
		opts := template.PreviewOptions{Width: settings().UI.PreviewWidth, Dark: dark}
		if !ok {
			opts.Style = settings().UI.PreviewStyle
		}
		p, err := template.NewPreviewer(opts)
		if err != nil {
			return err
		}
		if out, err = p.Markdown(res.Text); err != nil {
			return err
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), out)

	logger.Debug("template rendered",
		zap.String("template", tmplFile),
		zap.Int("substituted", res.Substituted),
		zap.Int("unresolved", len(res.Unresolved)))

	if !res.Complete() {
		fmt.Fprintf(cmd.ErrOrStderr(), "unresolved placeholders: %s\n", strings.Join(res.Unresolved, ", "))
		if strict {
			return fmt.Errorf("%d unresolved placeholders", len(res.Unresolved))
		}
	}
	return nil
}

// storedTree loads a named scene from the store and parses it.
func storedTree(ctx context.Context, name string) (*document.Node, error) {
	st, err := store.Open(settings().StorePath(workspaceDir()))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	sc, err := st.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	tree, err := document.NewYAMLCodec(settings().Editor.Indent).Parse(sc.Text)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", name, err)
	}
	return tree, nil
}

// validationResult is the outcome for one file.
type validationResult struct {
	file  string
	paths int
	err   error
}

func runValidate(cmd *cobra.Command, args []string) error {
	g, ctx := errgroup.WithContext(commandContext(cmd))
	g.SetLimit(8)

	results := make([]validationResult, len(args))
	var mu sync.Mutex
	failed := 0

	codec := document.NewYAMLCodec(settings().Editor.Indent)
	for i, file := range args {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := validationResult{file: file}
			data, err := os.ReadFile(file)
			if err == nil {
				var tree *document.Node
				tree, err = codec.Parse(string(data))
				if err == nil {
					r.paths = len(document.Paths(tree))
				}
			}
			r.err = err
			results[i] = r
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", r.file, r.err)
			continue
		}
		fmt.Fprintf(out, "✓ %s (%d paths)\n", r.file, r.paths)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files invalid", failed, len(args))
	}
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	before, _, err := openScene(args[0], false)
	if err != nil {
		return err
	}
	defer before.Close()
	after, _, err := openScene(args[1], false)
	if err != nil {
		return err
	}
	defer after.Close()

	oldTree, newTree := before.Tree(), after.Tree()
	fd, err := diff.Documents(filepath.Base(args[1]), oldTree, newTree, document.NewYAMLCodec(settings().Editor.Indent))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if fd.Empty() {
		fmt.Fprintln(out, "Scenes are equivalent.")
		return nil
	}
	fmt.Fprint(out, fd.Render(diff.DefaultStyles()))
	fmt.Fprintln(out)
	for _, c := range diff.Changes(oldTree, newTree) {
		switch c.Kind {
		case diff.ChangeAdded:
			fmt.Fprintf(out, "+ %s = %s\n", c.Path, c.After)
		case diff.ChangeRemoved:
			fmt.Fprintf(out, "- %s (was %s)\n", c.Path, c.Before)
		default:
			fmt.Fprintf(out, "~ %s: %s -> %s\n", c.Path, c.Before, c.After)
		}
	}
	added, removed := fd.Stats()
	fmt.Fprintf(out, "%d lines added, %d removed\n", added, removed)
	return nil
}
