package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promptscene/internal/diff"
	"promptscene/internal/document"
	"promptscene/internal/store"
	"promptscene/internal/watch"
)

var (
	description string
	tags        []string
	showDiff    bool
)

// storeCmd groups the scene store commands
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage saved scenes",
	Long: `Named scenes live in a SQLite database under .scene/ (see store.path in
.scene/config.yaml or SCENE_STORE_PATH). Every save that changes a scene's
text records a revision.`,
}

var storeSaveCmd = &cobra.Command{
	Use:   "save <name> <file>",
	Short: "Save a scene file under a name",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoreSave,
}

var storeLoadCmd = &cobra.Command{
	Use:   "load <name> [file]",
	Short: "Print a saved scene, or write it to a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runStoreLoad,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved scenes",
	Args:  cobra.NoArgs,
	RunE:  runStoreList,
}

var storeRemoveCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a saved scene and its history",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreRemove,
}

var storeExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export every scene as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStoreExport,
}

var storeImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import scenes from an export",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreImport,
}

var storeHistoryCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "List a scene's revisions",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreHistory,
}

var storeBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the store database",
	Args:  cobra.NoArgs,
	RunE:  runStoreBackup,
}

func init() {
	storeSaveCmd.Flags().StringVarP(&description, "description", "d", "", "Scene description")
	storeSaveCmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Scene tag (repeatable)")
	storeHistoryCmd.Flags().BoolVar(&showDiff, "diff", false, "Show what each revision changed")

	storeCmd.AddCommand(storeSaveCmd)
	storeCmd.AddCommand(storeLoadCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeRemoveCmd)
	storeCmd.AddCommand(storeExportCmd)
	storeCmd.AddCommand(storeImportCmd)
	storeCmd.AddCommand(storeHistoryCmd)
	storeCmd.AddCommand(storeBackupCmd)
}

// withStore opens the configured store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
	defer cancel()

	path := settings().StorePath(workspaceDir())
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Debug("store opened", zap.String("path", path))
	return fn(ctx, st)
}

func runStoreSave(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		sc := &store.Scene{Name: args[0]}
		if prev, err := st.Load(ctx, args[0]); err == nil {
			sc = prev
		}
		sc.Text = string(data)
		if cmd.Flags().Changed("description") {
			sc.Description = description
		}
		if cmd.Flags().Changed("tag") {
			sc.Tags = tags
		}
		if err := st.Save(ctx, sc); err != nil {
			return err
		}
		state := "valid"
		if !sc.Valid {
			state = "invalid YAML"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %s)\n", sc.Name, sc.ID, state)
		return nil
	})
}

func runStoreLoad(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		if len(args) == 1 {
			sc, err := st.Load(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), sc.Text)
			return nil
		}

		m := document.NewManager("")
		defer m.Close()
		if _, err := st.OpenDocument(ctx, args[0], m); err != nil {
			return err
		}
		fsync, err := watch.New(args[1], m)
		if err != nil {
			return err
		}
		if err := fsync.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s to %s\n", args[0], fsync.Path())
		return nil
	})
}

func runStoreList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		scenes, err := st.List(ctx)
		if err != nil {
			return err
		}
		if len(scenes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scenes saved.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tUPDATED\tSIZE\tVALID\tTAGS\tDESCRIPTION")
		for _, sc := range scenes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\t%s\n",
				sc.Name, humanize.Time(sc.UpdatedAt), humanize.Bytes(uint64(len(sc.Text))), sc.Valid,
				strings.Join(sc.Tags, ","), sc.Description)
		}
		return tw.Flush()
	})
}

func runStoreRemove(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		if err := st.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	})
}

func runStoreExport(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		var w io.Writer = cmd.OutOrStdout()
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[0], err)
			}
			defer f.Close()
			w = f
		}
		return st.Export(ctx, w)
	})
}

func runStoreImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		n, err := st.Import(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d scenes\n", n)
		return nil
	})
}

func runStoreHistory(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		revs, err := st.History(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, r := range revs {
			fmt.Fprintf(out, "#%d  %s (%s)  %s\n", r.ID, r.SavedAt.Local().Format("2006-01-02 15:04:05"),
				humanize.Time(r.SavedAt), r.Hash[:min(12, len(r.Hash))])
			if !showDiff || i+1 >= len(revs) {
				continue
			}
			// History is newest first; diff against the revision before.
			prev := revs[i+1]
			fd := diff.ComputeDiff(fmt.Sprintf("#%d", prev.ID), fmt.Sprintf("#%d", r.ID), prev.Text, r.Text)
			fmt.Fprint(out, fd.Unified())
		}
		return nil
	})
}

func runStoreBackup(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st *store.Store) error {
		path, err := st.Backup(ctx)
		if err != nil {
			return err
		}
		if info, err := os.Stat(path); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
		return nil
	})
}
