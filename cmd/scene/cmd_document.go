package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promptscene/internal/diff"
	"promptscene/internal/document"
	"promptscene/internal/template"
	"promptscene/internal/watch"
)

var (
	dryRun     bool
	jsonOutput bool
)

var getCmd = &cobra.Command{
	Use:   "get <file> [path]",
	Short: "Print the value at a path",
	Long: `Resolves a dotted path such as "messages[0].content" and prints the
value. Scalars print as plain text, containers as YAML (or JSON with --json).
Without a path the whole scene is printed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <file> <path> <value>",
	Short: "Write a value at a path",
	Long: `Parses value as YAML and writes it at path, creating intermediate maps
and lists as needed.

Examples:
  scene set prompt.yaml model gpt-4
  scene set prompt.yaml messages[0].role system
  scene set prompt.yaml params "{temperature: 0.2}"`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

var addItemCmd = &cobra.Command{
	Use:   "add-item <file> <path> [seed]",
	Short: "Append an item to the list at a path",
	Long: `Appends to the list at path. When the list holds maps the new item copies
the first item's keys with empty values; otherwise seed (default "") is
appended. A non-list value at path becomes a list first.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runAddItem,
}

var rmItemCmd = &cobra.Command{
	Use:   "rm-item <file> <path> <index>",
	Short: "Remove an item from the list at a path",
	Args:  cobra.ExactArgs(3),
	RunE:  runRemoveItem,
}

var addPropCmd = &cobra.Command{
	Use:   "add-prop <file> <path> <key> [value]",
	Short: "Add a property to the map at a path",
	Long: `Sets key on the map at path. When path holds a list, key is set on every
map in it. Use "" as path for the top level.`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runAddProperty,
}

var rmPropCmd = &cobra.Command{
	Use:   "rm-prop <file> <path> <key>",
	Short: "Remove a property from the map at a path",
	Args:  cobra.ExactArgs(3),
	RunE:  runRemoveProperty,
}

var pathsCmd = &cobra.Command{
	Use:   "paths <file>",
	Short: "List every path in a scene with its placeholder",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaths,
}

// openScene reads file into a manager. A missing file is an empty scene when
// allowMissing is set.
func openScene(file string, allowMissing bool) (*document.Manager, string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if !allowMissing || !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("read %s: %w", file, err)
		}
	}
	text := string(data)
	s := settings()
	m := document.NewManager(text,
		document.WithCodec(document.NewYAMLCodec(s.Editor.Indent)),
		document.WithDebounce(s.GetDebounce()),
	)
	if !m.Valid() {
		m.Close()
		return nil, "", fmt.Errorf("%s: %w", file, m.Err())
	}
	return m, text, nil
}

// parseValue reads a command line argument as a YAML value.
func parseValue(arg string) (*document.Node, error) {
	if arg == "" {
		return document.String(""), nil
	}
	v, err := document.NewYAMLCodec(document.DefaultIndent).Parse(arg)
	if err != nil {
		return nil, fmt.Errorf("value %q: %w", arg, err)
	}
	return v, nil
}

// mutateScene applies edit to file and writes the result back, or prints
// the diff when --dry-run is set.
func mutateScene(cmd *cobra.Command, file string, edit func(m *document.Manager)) error {
	m, original, err := openScene(file, true)
	if err != nil {
		return err
	}
	defer m.Close()

	edit(m)
	if err := m.Err(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if m.Text() == original {
		fmt.Fprintln(out, "No change.")
		return nil
	}

	if dryRun {
		name := filepath.Base(file)
		fd := diff.ComputeDiff("a/"+name, "b/"+name, original, m.Text())
		fmt.Fprint(out, fd.Unified())
		return nil
	}

	fsync, err := watch.New(file, m)
	if err != nil {
		return err
	}
	if err := fsync.Save(); err != nil {
		return err
	}
	logger.Info("scene updated", zap.String("file", fsync.Path()))
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	m, _, err := openScene(args[0], false)
	if err != nil {
		return err
	}
	defer m.Close()

	tree := m.Tree()
	path := ""
	if len(args) > 1 {
		path = args[1]
	}
	v, ok := document.Resolve(tree, path)
	if !ok {
		return fmt.Errorf("path %q not found", path)
	}
	return printValue(cmd.OutOrStdout(), v)
}

func printValue(w io.Writer, v *document.Node) error {
	if jsonOutput {
		var buf bytes.Buffer
		if err := writeJSON(&buf, v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		var out bytes.Buffer
		if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		fmt.Fprintln(w, out.String())
		return nil
	}
	if !v.Kind().IsContainer() {
		fmt.Fprintln(w, v.Text())
		return nil
	}
	text, err := document.NewYAMLCodec(settings().Editor.Indent).Dump(v)
	if err != nil {
		return err
	}
	fmt.Fprint(w, text)
	return nil
}

// writeJSON encodes n keeping map keys in document order.
func writeJSON(buf *bytes.Buffer, n *document.Node) error {
	switch n.Kind() {
	case document.KindMap:
		buf.WriteByte('{')
		for i, k := range n.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			child, _ := n.Get(k)
			if err := writeJSON(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case document.KindArray:
		buf.WriteByte('[')
		for i, it := range n.Items() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, it); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}
	data, err := json.Marshal(n.Interface())
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	v, err := parseValue(args[2])
	if err != nil {
		return err
	}
	return mutateScene(cmd, args[0], func(m *document.Manager) {
		m.UpdatePath(args[1], v, document.OriginExternal, true)
	})
}

func runAddItem(cmd *cobra.Command, args []string) error {
	seed := document.String("")
	if len(args) > 2 {
		v, err := parseValue(args[2])
		if err != nil {
			return err
		}
		seed = v
	}
	return mutateScene(cmd, args[0], func(m *document.Manager) {
		m.AddArrayItem(args[1], seed, document.OriginExternal, true)
	})
}

func runRemoveItem(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("index %q: %w", args[2], err)
	}
	return mutateScene(cmd, args[0], func(m *document.Manager) {
		m.RemoveArrayItem(args[1], index, document.OriginExternal, true)
	})
}

func runAddProperty(cmd *cobra.Command, args []string) error {
	value := document.String("")
	if len(args) > 3 {
		v, err := parseValue(args[3])
		if err != nil {
			return err
		}
		value = v
	}
	return mutateScene(cmd, args[0], func(m *document.Manager) {
		m.AddObjectProperty(args[1], args[2], value, document.OriginExternal, true)
	})
}

func runRemoveProperty(cmd *cobra.Command, args []string) error {
	return mutateScene(cmd, args[0], func(m *document.Manager) {
		m.RemoveObjectProperty(args[1], args[2], document.OriginExternal, true)
	})
}

func runPaths(cmd *cobra.Command, args []string) error {
	m, _, err := openScene(args[0], false)
	if err != nil {
		return err
	}
	defer m.Close()

	out := cmd.OutOrStdout()
	for _, f := range template.Flatten(m.Tree()) {
		fmt.Fprintf(out, "%-40s %-8s %s\n", template.Placeholder(f.Path), f.Kind, f.Value)
	}
	return nil
}
