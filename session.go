package contextdb

import (
	"context"
)

// Session wraps a DB with a boolean pass/fail surface and a per-session last
// error slot, mirroring the shape a C ABI exposes: operations report success
// through their primary return value, and the failure detail is retrievable
// separately via LastErrorMessage.
//
// A Session belongs to one logical execution context (one goroutine, one
// worker). It is not safe for concurrent use — create one Session per caller
// instead. Sessions never share error state: a failure on one session is
// invisible to every other session on the same or a different DB.
type Session struct {
	db      *DB
	lastErr string
}

// NewSession creates an independent session over the handle
func (db *DB) NewSession() *Session {
	return &Session{db: db}
}

// Insert stores an expression/meaning pair, reporting success as a boolean.
// On failure the detail is available via LastErrorMessage.
func (s *Session) Insert(expression string, meaning []float32) bool {
	_, err := s.db.Insert(context.Background(), expression, meaning)
	s.record(err)
	return err == nil
}

// Count returns the record count and whether the call succeeded
func (s *Session) Count() (int, bool) {
	count, err := s.db.Count(context.Background())
	s.record(err)
	return count, err == nil
}

// QueryMeaning runs a semantic search with DB.QueryMeaning semantics. The
// second return value distinguishes failure from an empty result: a matching
// query always yields a non-nil slice.
func (s *Session) QueryMeaning(meaning []float32, threshold float32, limit int) ([]Result, bool) {
	results, err := s.db.QueryMeaning(context.Background(), meaning, threshold, limit)
	s.record(err)
	if err != nil {
		return nil, false
	}
	return results, true
}

// QueryExpressionContains runs a substring search with
// DB.QueryExpressionContains semantics
func (s *Session) QueryExpressionContains(substring string, limit int) ([]Result, bool) {
	results, err := s.db.QueryExpressionContains(context.Background(), substring, limit)
	s.record(err)
	if err != nil {
		return nil, false
	}
	return results, true
}

// LastErrorMessage returns a copy of the most recent error description for
// this session, or "" when the last operation succeeded (or none has run).
// Retrieving it does not clear it; the next successful call does.
func (s *Session) LastErrorMessage() string {
	return s.lastErr
}

// record updates the last-error slot: failures overwrite it, successes clear it
func (s *Session) record(err error) {
	if err != nil {
		s.lastErr = err.Error()
		return
	}
	s.lastErr = ""
}
