package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// formatVersion is bumped when the persisted layout changes incompatibly
const formatVersion = 1

// Init opens the SQLite database and prepares the schema. It fails cleanly
// (without leaving a half-initialized handle) when the path exists but is not
// a valid store of this format, or is inaccessible.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}

	// _journal_mode=WAL: better concurrency
	// _synchronous=NORMAL: balance of durability and speed; commits flush on
	// transaction boundaries, so each insert is durable before it returns
	// _busy_timeout=5000: wait up to 5s for a lock instead of failing
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", s.dbPath())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	if s.inMemory() {
		// Each pooled connection to :memory: would get its own database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := s.createTables(ctx, db); err != nil {
		_ = db.Close()
		return wrapError("init", asOpenError(err))
	}

	dim, err := s.loadMeta(ctx, db)
	if err != nil {
		_ = db.Close()
		return wrapError("init", asOpenError(err))
	}

	s.db = db
	s.dim = dim
	s.logger.Debug("store opened", "path", s.config.Path, "dimension", dim)

	return nil
}

func (s *SQLiteStore) dbPath() string {
	if s.inMemory() {
		return ":memory:"
	}
	return s.config.Path
}

// asOpenError maps SQLite's "not a database" failure onto the corrupt-store
// sentinel so callers can distinguish it from plain I/O errors.
func asOpenError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "not a database") {
		return fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return err
}

func (s *SQLiteStore) createTables(ctx context.Context, db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		meaning BLOB NOT NULL,
		checksum INTEGER NOT NULL,
		expression TEXT NOT NULL,
		context TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relations (
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id),
		FOREIGN KEY (from_id) REFERENCES entries(id),
		FOREIGN KEY (to_id) REFERENCES entries(id)
	);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);
	CREATE INDEX IF NOT EXISTS idx_entries_updated_at ON entries(updated_at);
	CREATE INDEX IF NOT EXISTS idx_entries_expression ON entries(expression);
	CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_id);
	CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_id);
	`

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// loadMeta reads or seeds the persisted format version and dimension
func (s *SQLiteStore) loadMeta(ctx context.Context, db *sql.DB) (int, error) {
	var versionStr string
	err := db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = 'format_version'").Scan(&versionStr)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx,
			"INSERT INTO store_meta (key, value) VALUES ('format_version', ?)",
			strconv.Itoa(formatVersion)); err != nil {
			return 0, fmt.Errorf("failed to write format version: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("failed to read format version: %w", err)
	default:
		version, convErr := strconv.Atoi(versionStr)
		if convErr != nil || version != formatVersion {
			return 0, fmt.Errorf("%w: unsupported format version %q", ErrCorruptStore, versionStr)
		}
	}

	var dimStr string
	err = db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = 'dimension'").Scan(&dimStr)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.config.Dimension, nil
	case err != nil:
		return 0, fmt.Errorf("failed to read dimension: %w", err)
	}

	dim, convErr := strconv.Atoi(dimStr)
	if convErr != nil || dim < 0 {
		return 0, fmt.Errorf("%w: invalid persisted dimension %q", ErrCorruptStore, dimStr)
	}

	if s.config.Dimension > 0 && dim > 0 && dim != s.config.Dimension {
		return 0, fmt.Errorf("%w: store dimension is %d, configured %d",
			ErrInvalidDimension, dim, s.config.Dimension)
	}

	return dim, nil
}
