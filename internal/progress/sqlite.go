// internal/progress/sqlite.go
//
// SQLite-backed Store: the default durable medium. One row per player
// holding the serialized record. WAL journaling and a busy timeout keep
// concurrent access safe; the upsert makes Save atomic for readers.
package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if missing) the progress database at path.
func OpenSQLite(path string) (Store, error) {
	// Ensure directory exists for ./data/fartopia.db, etc.
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS progress_records (
			player_id  TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create progress_records: %w", err)
	}
	return nil
}

func (s *sqliteStore) Load(ctx context.Context, playerID string) (*Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM progress_records WHERE player_id=?`, playerID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		rec := NewRecord(playerID, time.Now())
		if err := s.Save(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress %s: %w", playerID, err)
	}
	// Corrupt or partial rows are repaired, never surfaced as errors.
	// The repaired record replaces the bad row right away so the repair
	// survives even if the player never mutates anything.
	rec, repaired := decodeRecord([]byte(data), playerID, time.Now())
	if repaired {
		if err := s.Save(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *sqliteStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress %s: %w", rec.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress_records (player_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			data       = excluded.data,
			updated_at = excluded.updated_at`,
		rec.ID, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save progress %s: %w", rec.ID, err)
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }
