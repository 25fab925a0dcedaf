package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"promptscene/internal/document"
	"promptscene/internal/logging"
)

// exportFormat is bumped when the export layout changes.
const exportFormat = 1

type exportFile struct {
	Format int             `json:"format"`
	Scenes []exportedScene `json:"scenes"`
}

type exportedScene struct {
	Scene
	// Tree is the parsed document for consumers that do not read YAML.
	// Absent for invalid scenes.
	Tree any `json:"tree,omitempty"`
}

// Export writes every scene as indented JSON.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	scenes, err := s.List(ctx)
	if err != nil {
		return err
	}

	out := exportFile{Format: exportFormat, Scenes: make([]exportedScene, 0, len(scenes))}
	parsed := 0
	for _, sc := range scenes {
		es := exportedScene{Scene: *sc}
		if tree, err := s.codec.Parse(sc.Text); err == nil {
			es.Tree = tree.Interface()
			parsed++
		}
		out.Scenes = append(out.Scenes, es)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	logging.Get(logging.CategoryStore).StructuredLog("info", "export", map[string]interface{}{
		"count":  len(out.Scenes),
		"parsed": parsed,
	})
	return nil
}

// Import reads an Export stream and saves every scene in it, replacing
// scenes with the same name. It returns the number of scenes saved.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	var in exportFile
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return 0, fmt.Errorf("failed to decode import: %w", err)
	}
	if in.Format != exportFormat {
		return 0, fmt.Errorf("unsupported export format %d", in.Format)
	}

	n := 0
	for _, es := range in.Scenes {
		sc := es.Scene
		if sc.Text == "" && es.Tree != nil {
			text, err := s.codec.Dump(document.FromInterface(es.Tree))
			if err != nil {
				return n, fmt.Errorf("scene %q: %w", sc.Name, err)
			}
			sc.Text = text
		}
		sc.ID = ""
		if err := s.Save(ctx, &sc); err != nil {
			return n, err
		}
		n++
	}
	logging.Get(logging.CategoryStore).StructuredLog("info", "import", map[string]interface{}{"count": n})
	return n, nil
}

// Backup checkpoints the write-ahead log and copies the database file.
func (s *Store) Backup(ctx context.Context) (string, error) {
	if s.path == ":memory:" {
		return "", errors.New("in-memory store cannot be backed up")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", fmt.Errorf("failed to checkpoint: %w", err)
	}
	return CreateBackup(s.path)
}
