// Package dbstore is the SQLite persistence layer: documents, chunks,
// images, conversations, and the key/value settings table backing
// internal/config's dynamic settings. It uses the pure-Go
// modernc.org/sqlite driver in WAL mode so the daemon and any
// auxiliary tooling (CLI import, migration) can access the same
// database file concurrently without CGO.
package dbstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// Store wraps the SQLite connection pool and exposes the document,
// chunk, image, conversation, and settings operations.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// validateIntegrity checks that an existing database file is not
// corrupt before the daemon opens it for real. Returns nil if the
// file doesn't exist yet (it will be created).
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	return nil
}

// Open opens (creating if necessary) the SQLite database at path and
// initializes its schema. If path is empty, opens an in-memory
// database for testing. cacheMB configures the SQLite page cache size.
func Open(path string, cacheMB int) (*Store, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, senerrors.Wrap(senerrors.ErrCodeDBConnection, err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("seneschal_db_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			return nil, senerrors.Wrap(senerrors.ErrCodeDBConnection, validErr)
		}

		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, senerrors.Wrap(senerrors.ErrCodeDBConnection, err)
	}

	// A single writer avoids lock contention on SQLite; concurrent
	// readers still work under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if cacheMB <= 0 {
		cacheMB = 64
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, senerrors.Wrap(senerrors.ErrCodeDBConnection, fmt.Errorf("pragma %q: %w", pragma, err))
		}
	}

	s := &Store{db: db, path: path}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, senerrors.Wrap(senerrors.ErrCodeDBMigration, err)
	}

	return s, nil
}

// Close checkpoints the WAL log and closes the database connection.
// Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB returns the underlying *sql.DB for callers (migrations, ad hoc
// tooling) that need direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}
