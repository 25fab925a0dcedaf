package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"promptscene/internal/logging"
)

// Schema versions:
// v1: scenes and scene_revisions tables
// v2: description and tags columns on scenes
// v3: content_hash column on scenes, backfilled from the body
const CurrentSchemaVersion = 3

// Migration adds one column to an existing table.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists the columns added after v1. Databases created by
// an older build gain them on open.
var pendingMigrations = []Migration{
	{"scenes", "description", "TEXT NOT NULL DEFAULT ''"},
	{"scenes", "tags", "TEXT NOT NULL DEFAULT '[]'"},
	{"scenes", "content_hash", "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations brings db up to CurrentSchemaVersion.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	from := GetSchemaVersion(db)
	if from >= CurrentSchemaVersion {
		logging.StoreDebug("schema at v%d, nothing to migrate", from)
		return nil
	}

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) || columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", m.Table, m.Column, err)
		}
		logging.Store("migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}

	if _, err := BackfillContentHashes(db); err != nil {
		return err
	}
	if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
		return err
	}
	logging.Store("schema migrated v%d -> v%d (%d columns added)", from, CurrentSchemaVersion, applied)
	return nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	return err == nil && count > 0
}

// GetSchemaVersion returns the recorded schema version, inferring it from
// the table layout when none was recorded.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_versions") {
		var version int
		err := db.QueryRow("SELECT version FROM schema_versions ORDER BY id DESC LIMIT 1").Scan(&version)
		if err == nil {
			return version
		}
	}
	switch {
	case !tableExists(db, "scenes"):
		return 0
	case columnExists(db, "scenes", "content_hash"):
		return 3
	case columnExists(db, "scenes", "tags"):
		return 2
	}
	return 1
}

// SetSchemaVersion records version as applied.
func SetSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}
	_, err = db.Exec("INSERT INTO schema_versions (version, description) VALUES (?, ?)",
		version, fmt.Sprintf("Migrated to schema version %d", version))
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// BackfillContentHashes fills content_hash for scenes saved before v3.
func BackfillContentHashes(db *sql.DB) (int, error) {
	rows, err := db.Query("SELECT id, name, body FROM scenes WHERE content_hash = ''")
	if err != nil {
		return 0, fmt.Errorf("failed to query scenes for backfill: %w", err)
	}
	type pending struct{ id, hash string }
	var todo []pending
	for rows.Next() {
		var id, name, body string
		if err := rows.Scan(&id, &name, &body); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to read scene for backfill: %w", err)
		}
		todo = append(todo, pending{id, ComputeContentHash(name, body)})
	}
	rows.Close()

	for _, p := range todo {
		if _, err := db.Exec("UPDATE scenes SET content_hash = ? WHERE id = ?", p.hash, p.id); err != nil {
			return 0, fmt.Errorf("failed to backfill hash for %s: %w", p.id, err)
		}
	}
	if len(todo) > 0 {
		logging.Store("backfilled content hashes: %d", len(todo))
	}
	return len(todo), nil
}

// ComputeContentHash returns the SHA256 of a scene's name and text.
func ComputeContentHash(name, text string) string {
	sum := sha256.Sum256([]byte(name + "::" + text))
	return hex.EncodeToString(sum[:])
}

// CreateBackup copies the database file next to itself and returns the
// copy's path.
func CreateBackup(dbPath string) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "CreateBackup")
	defer timer.Stop()

	backupPath := dbPath + ".backup_" + time.Now().Format("20060102_150405")

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source database: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return "", fmt.Errorf("failed to copy database to backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync backup to disk: %w", err)
	}

	logging.Store("database backup created: %s (%d bytes)", backupPath, n)
	return backupPath, nil
}
