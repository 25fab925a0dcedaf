// Package store keeps named scenes in a SQLite database, with a revision
// history per scene.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"promptscene/internal/document"
	"promptscene/internal/logging"
)

// ErrNotFound is returned when no scene has the requested name.
var ErrNotFound = errors.New("scene not found")

// Scene is a stored scene document.
type Scene struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Text        string    `json:"text"`
	Tags        []string  `json:"tags,omitempty"`
	Valid       bool      `json:"valid"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Revision is one saved version of a scene's text.
type Revision struct {
	ID      int64
	Text    string
	Hash    string
	SavedAt time.Time
}

// Document is the part of a document manager the store reads and writes.
type Document interface {
	Text() string
	SetText(text string, origin document.Origin, immediate bool)
}

// Store manages the scene database.
type Store struct {
	mu    sync.RWMutex
	db    *sql.DB
	path  string
	codec document.Codec
}

// Open creates or opens the scene database at path. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, codec: document.NewYAMLCodec(document.DefaultIndent)}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logging.Store("scene store opened: path=%s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		body TEXT NOT NULL,
		valid INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scene_revisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scene_id TEXT NOT NULL,
		body TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_revisions_scene ON scene_revisions(scene_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts sc or updates the scene with the same name. ID, CreatedAt,
// UpdatedAt and Valid are filled in. A revision is recorded whenever the
// text differs from the latest one.
func (s *Store) Save(ctx context.Context, sc *Scene) (err error) {
	start := time.Now()
	defer func() {
		logging.AuditForScene(sc.Name, logging.CategoryStore).StoreOp(logging.AuditStoreSave, sc.ID, sc.Name, time.Since(start), err)
		if err != nil {
			logging.StoreError("save %q failed: %v", sc.Name, err)
		}
	}()

	sc.Name = strings.TrimSpace(sc.Name)
	if sc.Name == "" {
		return errors.New("scene name is required")
	}
	_, perr := s.codec.Parse(sc.Text)
	sc.Valid = perr == nil

	tags, err := json.Marshal(sc.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	hash := ComputeContentHash(sc.Name, sc.Text)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin save: %w", err)
	}
	defer tx.Rollback()

	var id, lastHash string
	var created time.Time
	row := tx.QueryRowContext(ctx, `SELECT id, created_at, content_hash FROM scenes WHERE name = ?`, sc.Name)
	switch err := row.Scan(&id, &created, &lastHash); {
	case errors.Is(err, sql.ErrNoRows):
		id = sc.ID
		if id == "" {
			id = uuid.New().String()
		}
		created = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scenes (id, name, description, body, tags, valid, content_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, sc.Name, sc.Description, sc.Text, string(tags), sc.Valid, hash, created, now)
		if err != nil {
			return fmt.Errorf("failed to insert scene %q: %w", sc.Name, err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up scene %q: %w", sc.Name, err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE scenes SET description = ?, body = ?, tags = ?, valid = ?, content_hash = ?, updated_at = ?
			WHERE id = ?`,
			sc.Description, sc.Text, string(tags), sc.Valid, hash, now, id)
		if err != nil {
			return fmt.Errorf("failed to update scene %q: %w", sc.Name, err)
		}
	}

	if hash != lastHash {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scene_revisions (scene_id, body, content_hash, saved_at) VALUES (?, ?, ?, ?)`,
			id, sc.Text, hash, now)
		if err != nil {
			return fmt.Errorf("failed to record revision: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}

	sc.ID = id
	sc.CreatedAt = created
	sc.UpdatedAt = now
	logging.Store("scene saved: name=%s id=%s valid=%v", sc.Name, id, sc.Valid)
	return nil
}

const sceneColumns = `id, name, description, body, tags, valid, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanScene(r scanner) (*Scene, error) {
	var sc Scene
	var tags string
	if err := r.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.Text, &tags, &sc.Valid, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &sc.Tags); err != nil {
			return nil, fmt.Errorf("scene %q has malformed tags: %w", sc.Name, err)
		}
	}
	return &sc, nil
}

// Load returns the scene called name.
func (s *Store) Load(ctx context.Context, name string) (sc *Scene, err error) {
	start := time.Now()
	defer func() {
		id := ""
		if sc != nil {
			id = sc.ID
		}
		logging.AuditForScene(name, logging.CategoryStore).StoreOp(logging.AuditStoreLoad, id, name, time.Since(start), err)
		if err != nil && !errors.Is(err, ErrNotFound) {
			logging.StoreError("load %q failed: %v", name, err)
		}
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE name = ?`, name)
	sc, err = scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scene %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scene %q: %w", name, err)
	}
	return sc, nil
}

// List returns every scene ordered by name.
func (s *Store) List(ctx context.Context) ([]*Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+sceneColumns+` FROM scenes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	defer rows.Close()

	var out []*Scene
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read scene row: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Delete removes the scene called name and its revisions.
func (s *Store) Delete(ctx context.Context, name string) (err error) {
	start := time.Now()
	var id string
	defer func() {
		logging.AuditForScene(name, logging.CategoryStore).StoreOp(logging.AuditStoreDelete, id, name, time.Since(start), err)
		if err != nil && !errors.Is(err, ErrNotFound) {
			logging.StoreError("delete %q failed: %v", name, err)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `SELECT id FROM scenes WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("scene %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up scene %q: %w", name, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM scene_revisions WHERE scene_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete revisions: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete scene %q: %w", name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	logging.Store("scene deleted: name=%s id=%s", name, id)
	return nil
}

// History returns the revisions of the scene called name, newest first.
func (s *Store) History(ctx context.Context, name string) ([]Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM scenes WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scene %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up scene %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, body, content_hash, saved_at FROM scene_revisions
		WHERE scene_id = ? ORDER BY id DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.Text, &r.Hash, &r.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to read revision row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveDocument stores doc's current text under name, keeping any existing
// description and tags.
func (s *Store) SaveDocument(ctx context.Context, name string, doc Document) (*Scene, error) {
	sc := &Scene{Name: name}
	if prev, err := s.Load(ctx, name); err == nil {
		sc = prev
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	sc.Text = doc.Text()
	if err := s.Save(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// OpenDocument loads the scene called name into doc.
func (s *Store) OpenDocument(ctx context.Context, name string, doc Document) (*Scene, error) {
	sc, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	doc.SetText(sc.Text, document.OriginExternal, true)
	return sc, nil
}
