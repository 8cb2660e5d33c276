// Package persist is the on-device storage layer: a single SQLite
// documents table read at startup and written behind per-key
// debouncers. When the server is unreachable it is the source of truth,
// so write failures are logged and swallowed rather than allowed to
// block or crash the in-memory state transition that triggered them.
package persist

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// schemaVersion is the envelope version written with every document.
// A stored document with a different version is treated as missing so
// the caller falls back to its documented default.
const schemaVersion = 1

// Well-known document keys. Each data key owns an independent
// debouncer; auth_token is written immediately, never debounced.
const (
	KeyCurrentWorkout = "current_workout"
	KeyHistory        = "workout_history"
	KeyPreferences    = "user_preferences"
	KeyExerciseCache  = "exercise_cache"
	KeySyncQueue      = "sync_queue"
)

// envelope wraps every stored payload with its schema version.
type envelope struct {
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// Store is the keyed document store backed by SQLite.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the store at dir/repsync.db and applies
// pending schema migrations.
func Open(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "repsync.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Put writes a document under key, replacing any previous value.
func (s *Store) Put(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	doc, err := json.Marshal(envelope{Version: schemaVersion, Payload: payload})
	if err != nil {
		return fmt.Errorf("enveloping %s: %w", key, err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO documents (key, version, updated_at, payload) VALUES (?, ?, ?, ?)`,
		key, schemaVersion, time.Now().UTC(), string(doc),
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Get reads the document stored under key into out. It returns false
// (not an error) when the key is absent, the envelope version does not
// match, or the payload fails to parse; the caller uses its documented
// default in all three cases. Decode problems are logged so corruption
// is visible without being fatal.
func (s *Store) Get(key string, out any) (bool, error) {
	var doc string
	err := s.db.QueryRow(`SELECT payload FROM documents WHERE key = ?`, key).Scan(&doc)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(doc), &env); err != nil {
		s.log.Warn("corrupt stored document, using default", "key", key, "error", err)
		return false, nil
	}
	if env.Version != schemaVersion {
		s.log.Warn("stored document version mismatch, using default",
			"key", key, "version", env.Version, "want", schemaVersion)
		return false, nil
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		s.log.Warn("undecodable stored document, using default", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

// Delete removes the document stored under key.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
