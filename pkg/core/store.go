package core

import (
	"database/sql"
	"sync"

	"github.com/charmbracelet/log"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore is the storage-and-query engine behind a contextdb handle,
// backed by a single SQLite database file.
//
// All methods are safe for concurrent use: inserts and other mutations take
// the write lock, queries share the read lock, so every query observes the
// store strictly before or strictly after any concurrent mutation.
type SQLiteStore struct {
	db           *sql.DB
	config       Config
	mu           sync.RWMutex
	closed       bool
	dim          int
	similarityFn SimilarityFunc
	logger       *log.Logger
}

// New creates a new store for the given path. Call Init before use.
func New(path string) (*SQLiteStore, error) {
	return NewWithConfig(DefaultConfig(path))
}

// NewWithConfig creates a new store with custom configuration. Call Init before use.
func NewWithConfig(config Config) (*SQLiteStore, error) {
	if config.Dimension < 0 {
		return nil, wrapError("init", ErrInvalidConfig)
	}

	if config.SimilarityFn == nil {
		config.SimilarityFn = CosineSimilarity
	}
	if config.Logger == nil {
		config.Logger = defaultLogger()
	}

	return &SQLiteStore{
		config:       config,
		dim:          config.Dimension,
		similarityFn: config.SimilarityFn,
		logger:       config.Logger,
	}, nil
}

// Dimension returns the established vector dimensionality, or 0 when the
// store is empty and no dimension has been pinned yet.
func (s *SQLiteStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// inMemory reports whether the store has no backing file
func (s *SQLiteStore) inMemory() bool {
	return s.config.Path == "" || s.config.Path == ":memory:"
}
