package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"skillshub/internal/faults"
)

// Store is the transactional catalog of skills, their mirror targets,
// remote hosts and custom target directories. A single connection keeps
// mutations single-writer.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at the given path and
// applies pending schema migrations. A migration failure is returned to
// the caller, which treats it as fatal.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	// _pragma options apply to every pooled connection, not just the
	// first one the pool happens to open.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

// migrate applies every migration batch newer than the recorded schema
// version, each in its own transaction, newest version recorded last.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		current = m.version
	}
	return nil
}

// SchemaVersion returns the currently applied schema version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// now returns the canonical timestamp format stored in every table.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// RemoveManagedPath deletes a mirror path from disk, symlink-aware: a
// link is removed without following it, anything else recursively. The
// delete is refused when the path resolves to the central repository
// root, so a stale row can never take the whole repository with it.
func (s *Store) RemoveManagedPath(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return faults.New(faults.Validation, "empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return faults.Wrap(faults.Validation, err, "resolve path")
	}

	root, err := s.Setting(ctx, SettingCentralRoot)
	if err != nil {
		return err
	}
	if root != "" && sameLocation(abs, root) {
		return faults.New(faults.Conflict, "refusing to delete the central repository root").At(abs)
	}

	info, err := os.Lstat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return faults.Wrap(faults.IO, err, "stat").At(abs)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(abs); err != nil {
			return faults.Wrap(faults.IO, err, "remove link").At(abs)
		}
		return nil
	}
	if err := os.RemoveAll(abs); err != nil {
		return faults.Wrap(faults.IO, err, "remove directory").At(abs)
	}
	return nil
}

// sameLocation compares two paths after cleaning and, where both are
// resolvable, symlink resolution.
func sameLocation(a, b string) bool {
	ca, cb := filepath.Clean(a), filepath.Clean(b)
	if ca == cb {
		return true
	}
	ra, errA := filepath.EvalSymlinks(ca)
	rb, errB := filepath.EvalSymlinks(cb)
	return errA == nil && errB == nil && ra == rb
}
