// Package container implements the hierarchical key-addressed container that
// hive archives are stored in: groups, and single-element scalar slots holding
// either an int32 or a variable-length string. The container is a single
// SQLite file so the working copy can be compressed as one unit on close.
package container

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/hpungsan/hive/internal/errors"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest on-disk schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Mode selects how Open treats an existing or missing file.
// The letters follow the usual hierarchical-file conventions.
type Mode string

const (
	ModeRead      Mode = "r"  // read-only, file must exist
	ModeReadWrite Mode = "r+" // read/write, file must exist
	ModeTruncate  Mode = "w"  // create, truncating any existing file
	ModeExclusive Mode = "x"  // create, fail if the file exists
	ModeAppend    Mode = "a"  // read/write, create if missing
)

// ParseMode validates a mode string. Empty means ModeAppend; "w-" is an alias of "x".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeAppend):
		return ModeAppend, nil
	case string(ModeRead), string(ModeReadWrite), string(ModeTruncate), string(ModeExclusive):
		return Mode(s), nil
	case "w-":
		return ModeExclusive, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("invalid open mode %q (want r, r+, w, w-, x or a)", s))
}

// Container is an open container file. It is not safe for concurrent use.
type Container struct {
	db       *sql.DB
	path     string
	readOnly bool
	version  int
}

// Open opens or creates the container at path according to mode.
func Open(path string, mode Mode) (*Container, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	// The driver reads everything after '?' as connection parameters.
	if path == "" || strings.ContainsAny(path, "?#") {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid container path %q: must be non-empty without '?' or '#'", path))
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !stderrors.Is(statErr, os.ErrNotExist) {
		return nil, errors.NewInternal(fmt.Errorf("failed to stat container: %w", statErr))
	}

	switch mode {
	case ModeRead, ModeReadWrite:
		if !exists {
			return nil, errors.NewNotFound(path)
		}
	case ModeExclusive:
		if exists {
			return nil, errors.NewAlreadyExists(path)
		}
	case ModeTruncate:
		if exists {
			if err := os.Remove(path); err != nil {
				return nil, errors.NewInternal(fmt.Errorf("failed to truncate container: %w", err))
			}
		}
	}

	// Rollback journal keeps the container a single self-contained file,
	// which is what gets compressed on close.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(DELETE)"
	if mode == ModeRead {
		dsn += "&_pragma=query_only(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to open container: %w", err))
	}
	db.SetMaxOpenConns(1)

	if err := verifyJournalMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if mode != ModeRead {
		if err := migrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	version, err := GetUserVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if version < 1 {
		db.Close()
		return nil, errors.NewSchema("/", "not a hive container")
	}

	return &Container{db: db, path: path, readOnly: mode == ModeRead, version: version}, nil
}

// Path returns the file path of the container.
func (c *Container) Path() string {
	return c.path
}

// ReadOnly reports whether the container was opened with ModeRead.
func (c *Container) ReadOnly() bool {
	return c.readOnly
}

// Close closes the underlying database. The file is complete once Close returns.
func (c *Container) Close() error {
	if err := c.db.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close container: %w", err))
	}
	return nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: node table and root group
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS nodes (
		  path        TEXT PRIMARY KEY,
		  parent      TEXT,
		  name        TEXT NOT NULL,
		  kind        INTEGER NOT NULL,
		  dtype       INTEGER,
		  shape       INTEGER NOT NULL DEFAULT 0,
		  chunks      INTEGER NOT NULL DEFAULT 0,
		  compression TEXT,
		  int_value   INTEGER,
		  str_value   TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_parent_name
		ON nodes(parent, name);

		INSERT OR IGNORE INTO nodes (path, parent, name, kind)
		VALUES ('/', NULL, '', 1);
		`
		if _, err := db.Exec(schema); err != nil {
			return errors.NewInternal(fmt.Errorf("migration 1 failed: %w", err))
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: archive-level metadata (template source, ref code)
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS meta (
		  key   TEXT PRIMARY KEY,
		  value TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return errors.NewInternal(fmt.Errorf("migration 2 failed: %w", err))
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// SetMeta stores an archive-level metadata value, replacing any previous one.
func (c *Container) SetMeta(key, value string) error {
	if c.readOnly {
		return errors.NewReadOnly(c.path)
	}
	if _, err := c.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to write meta %s: %w", key, err))
	}
	return nil
}

// Meta returns the metadata value stored under key. Containers written
// before the meta table existed report every key as absent.
func (c *Container) Meta(key string) (string, bool, error) {
	if c.version < 2 {
		return "", false, nil
	}
	var value string
	err := c.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(fmt.Errorf("failed to read meta %s: %w", key, err))
	}
	return value, true, nil
}

// verifyJournalMode checks that the rollback journal is active (set via connection string).
func verifyJournalMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to verify journal mode: %w", err))
	}
	if journalMode != "delete" {
		return errors.NewInternal(fmt.Errorf("expected delete journal mode, got %s", journalMode))
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to get user_version: %w", err))
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to set user_version: %w", err))
	}
	return nil
}
