package contextdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb/pkg/core"
)

// DB is the caller-held handle to an open store. It exclusively owns the
// underlying store between Open and Close; two handles must not share a
// mutable store at the same path. A DB is safe for concurrent use.
type DB struct {
	store *core.SQLiteStore
}

// Result is one query match: a copy of the matched record's identifier,
// score, and expression text. It never aliases store memory, so it stays
// valid after further inserts or Close.
type Result struct {
	// ID is the 16-byte content-derived record identifier
	ID [16]byte

	// Score is the cosine similarity for meaning queries, 1.0 for substring matches
	Score float32

	// Expression is a copy of the matched expression text
	Expression string
}

// UUID returns the result identifier in uuid form
func (r Result) UUID() uuid.UUID {
	return uuid.UUID(r.ID)
}

// Open loads the store persisted at path, or initializes a new empty store
// there. Pass ":memory:" (or "") for a throwaway in-memory store. Open fails
// cleanly when path exists but is not a valid store, or is inaccessible.
func Open(path string) (*DB, error) {
	return OpenWithConfig(core.DefaultConfig(path))
}

// OpenInMemory opens a store that is discarded on Close
func OpenInMemory() (*DB, error) {
	return Open(":memory:")
}

// OpenWithConfig opens a store with custom engine configuration
func OpenWithConfig(config core.Config) (*DB, error) {
	store, err := core.NewWithConfig(config)
	if err != nil {
		return nil, err
	}

	if err := store.Init(context.Background()); err != nil {
		return nil, err
	}

	return &DB{store: store}, nil
}

// Insert stores a new expression with its meaning vector and returns the
// content-derived identifier. The vector must be non-empty and match the
// store's dimensionality once one is established; re-inserting identical
// content fails with core.ErrDuplicateID. The record is durable and visible
// to subsequent calls before Insert returns.
func (db *DB) Insert(ctx context.Context, expression string, meaning []float32) (uuid.UUID, error) {
	entry := core.NewEntry(meaning, expression)
	if err := db.store.Insert(ctx, entry); err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}

// InsertEntry stores a prepared entry, including context metadata and relations
func (db *DB) InsertEntry(ctx context.Context, entry *core.Entry) error {
	return db.store.Insert(ctx, entry)
}

// Get returns the entry with the given identifier
func (db *DB) Get(ctx context.Context, id uuid.UUID) (*core.Entry, error) {
	return db.store.Get(ctx, id)
}

// Update rewrites an existing entry, keeping its identifier
func (db *DB) Update(ctx context.Context, entry *core.Entry) error {
	return db.store.Update(ctx, entry)
}

// Delete removes an entry by identifier
func (db *DB) Delete(ctx context.Context, id uuid.UUID) error {
	return db.store.Delete(ctx, id)
}

// Count returns the number of committed records
func (db *DB) Count(ctx context.Context) (int, error) {
	return db.store.Count(ctx)
}

// Dimension returns the established vector dimensionality (0 while empty)
func (db *DB) Dimension() int {
	return db.store.Dimension()
}

// Query evaluates a unified core query
func (db *DB) Query(ctx context.Context, query *core.Query) ([]core.QueryResult, error) {
	return db.store.Query(ctx, query)
}

// QueryMeaning runs a semantic similarity search. Records scoring below
// threshold are discarded (pass a negative threshold to keep everything);
// results are ordered by score descending with identifier ascending as the
// tie-break, and truncated to limit (limit <= 0 means unlimited).
func (db *DB) QueryMeaning(ctx context.Context, meaning []float32, threshold float32, limit int) ([]Result, error) {
	query := core.NewQuery().WithMeaning(meaning, float64(threshold))
	if limit > 0 {
		query = query.WithLimit(limit)
	}

	matches, err := db.store.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return toResults(matches), nil
}

// QueryExpressionContains returns records whose expression contains substring
// (case-insensitive; the empty substring matches everything), in insertion
// order, truncated to limit (limit <= 0 means unlimited). Matches carry the
// fixed score 1.0.
func (db *DB) QueryExpressionContains(ctx context.Context, substring string, limit int) ([]Result, error) {
	query := core.NewQuery().WithExpression(core.ExpressionContains(substring))
	if limit > 0 {
		query = query.WithLimit(limit)
	}

	matches, err := db.store.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return toResults(matches), nil
}

// Close flushes committed records and releases the handle. It is idempotent;
// any operation after Close fails with core.ErrStoreClosed.
func (db *DB) Close() error {
	return db.store.Close()
}

func toResults(matches []core.QueryResult) []Result {
	results := make([]Result, 0, len(matches))
	for _, match := range matches {
		results = append(results, Result{
			ID:         match.Entry.ID,
			Score:      float32(match.Score),
			Expression: match.Entry.Expression,
		})
	}
	return results
}
