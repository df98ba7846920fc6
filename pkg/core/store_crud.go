package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb/internal/encoding"
)

// Insert appends a new entry. The meaning vector must be non-empty and, once
// the store holds at least one entry, match the established dimensionality.
// Inserting content whose derived ID already exists fails with ErrDuplicateID.
// The insert is all-or-nothing and immediately visible to subsequent calls.
func (s *SQLiteStore) Insert(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("insert", ErrStoreClosed)
	}

	if err := encoding.ValidateVector(entry.Meaning); err != nil {
		return wrapError("insert", fmt.Errorf("%w: meaning must be a non-empty finite vector", ErrInvalidVector))
	}

	if s.dim > 0 && len(entry.Meaning) != s.dim {
		return wrapError("insert", fmt.Errorf("%w: store dimension is %d, got %d",
			ErrInvalidDimension, s.dim, len(entry.Meaning)))
	}

	blob, err := encoding.EncodeVector(entry.Meaning)
	if err != nil {
		return wrapError("insert", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("insert", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (id, meaning, checksum, expression, context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(),
		blob,
		int64(encoding.Checksum(blob)),
		entry.Expression,
		contextText(entry),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return wrapError("insert", fmt.Errorf("%w: %s", ErrDuplicateID, entry.ID))
		}
		return wrapError("insert", fmt.Errorf("failed to insert entry: %w", err))
	}

	for _, relationID := range entry.Relations {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO relations (from_id, to_id) VALUES (?, ?)`,
			entry.ID.String(), relationID.String()); err != nil {
			return wrapError("insert", fmt.Errorf("failed to insert relation: %w", err))
		}
	}

	if s.dim == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO store_meta (key, value) VALUES ('dimension', ?)`,
			len(entry.Meaning)); err != nil {
			return wrapError("insert", fmt.Errorf("failed to pin dimension: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapError("insert", fmt.Errorf("failed to commit: %w", err))
	}

	if s.dim == 0 {
		s.dim = len(entry.Meaning)
		s.logger.Debug("dimension pinned", "dimension", s.dim)
	}

	return nil
}

// Get returns a copy of the entry with the given ID
func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get", ErrStoreClosed)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, meaning, checksum, expression, context, created_at, updated_at
		FROM entries WHERE id = ?`, id.String())

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get", fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	if err != nil {
		return nil, wrapError("get", err)
	}

	relations, err := s.loadRelations(ctx, id)
	if err != nil {
		return nil, wrapError("get", err)
	}
	entry.Relations = relations

	return entry, nil
}

// Update rewrites an existing entry in place, keeping its original ID
func (s *SQLiteStore) Update(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("update", ErrStoreClosed)
	}

	if err := encoding.ValidateVector(entry.Meaning); err != nil {
		return wrapError("update", fmt.Errorf("%w: meaning must be a non-empty finite vector", ErrInvalidVector))
	}

	if s.dim > 0 && len(entry.Meaning) != s.dim {
		return wrapError("update", fmt.Errorf("%w: store dimension is %d, got %d",
			ErrInvalidDimension, s.dim, len(entry.Meaning)))
	}

	blob, err := encoding.EncodeVector(entry.Meaning)
	if err != nil {
		return wrapError("update", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("update", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE entries
		SET meaning = ?, checksum = ?, expression = ?, context = ?, updated_at = ?
		WHERE id = ?`,
		blob,
		int64(encoding.Checksum(blob)),
		entry.Expression,
		contextText(entry),
		entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
		entry.ID.String(),
	)
	if err != nil {
		return wrapError("update", fmt.Errorf("failed to update entry: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return wrapError("update", err)
	}
	if affected == 0 {
		return wrapError("update", fmt.Errorf("%w: %s", ErrNotFound, entry.ID))
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM relations WHERE from_id = ?", entry.ID.String()); err != nil {
		return wrapError("update", fmt.Errorf("failed to clear relations: %w", err))
	}

	for _, relationID := range entry.Relations {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO relations (from_id, to_id) VALUES (?, ?)`,
			entry.ID.String(), relationID.String()); err != nil {
			return wrapError("update", fmt.Errorf("failed to insert relation: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapError("update", fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

// Delete removes an entry and its relation edges
func (s *SQLiteStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete", ErrStoreClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("delete", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM relations WHERE from_id = ? OR to_id = ?",
		id.String(), id.String()); err != nil {
		return wrapError("delete", fmt.Errorf("failed to delete relations: %w", err))
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id.String())
	if err != nil {
		return wrapError("delete", fmt.Errorf("failed to delete entry: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return wrapError("delete", err)
	}
	if affected == 0 {
		return wrapError("delete", fmt.Errorf("%w: %s", ErrNotFound, id))
	}

	if err := tx.Commit(); err != nil {
		return wrapError("delete", fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

// Count returns the number of committed entries
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, wrapError("count", ErrStoreClosed)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		return 0, wrapError("count", fmt.Errorf("failed to count entries: %w", err))
	}

	return count, nil
}

func (s *SQLiteStore) loadRelations(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT to_id FROM relations WHERE from_id = ? ORDER BY rowid", id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var relations []uuid.UUID
	for rows.Next() {
		var toStr string
		if err := rows.Scan(&toStr); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		toID, err := uuid.Parse(toStr)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed relation id %q", ErrCorruptStore, toStr)
		}
		relations = append(relations, toID)
	}

	return relations, rows.Err()
}

// contextText renders the JSON context column; nil context persists as JSON null
func contextText(entry *Entry) string {
	if len(entry.Context) == 0 {
		return "null"
	}
	return string(entry.Context)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var idStr, expression, contextJSON, createdStr, updatedStr string
	var blob []byte
	var checksum int64

	if err := row.Scan(&idStr, &blob, &checksum, &expression, &contextJSON, &createdStr, &updatedStr); err != nil {
		return nil, err
	}

	if int64(encoding.Checksum(blob)) != checksum {
		return nil, fmt.Errorf("%w: meaning checksum mismatch for %s", ErrCorruptStore, idStr)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed entry id %q", ErrCorruptStore, idStr)
	}

	meaning, err := encoding.DecodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed created_at %q", ErrCorruptStore, createdStr)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, updatedStr)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed updated_at %q", ErrCorruptStore, updatedStr)
	}

	entry := &Entry{
		ID:         id,
		Meaning:    meaning,
		Expression: expression,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
	if contextJSON != "" && contextJSON != "null" {
		entry.Context = []byte(contextJSON)
	}

	return entry, nil
}
