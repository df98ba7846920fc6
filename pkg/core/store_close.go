package core

// Close flushes and releases the underlying database. It is safe to call
// more than once; after the first call every other operation fails with
// ErrStoreClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return wrapError("close", err)
		}
	}

	s.logger.Debug("store closed", "path", s.config.Path)

	return nil
}
