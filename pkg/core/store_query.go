package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Query evaluates a unified query and returns matching entries.
//
// With a meaning filter, results are ordered by similarity score descending,
// ties broken by ID ascending byte-wise so equal scores rank deterministically.
// Without one, results keep insertion order (oldest first) and carry the fixed
// score 1.0. An empty store or a query matching nothing yields an empty, non-nil
// result slice, never an error.
func (s *SQLiteStore) Query(ctx context.Context, query *Query) ([]QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("query", ErrStoreClosed)
	}

	if query.Meaning != nil {
		if err := s.validateMeaningFilter(query.Meaning); err != nil {
			return nil, wrapError("query", err)
		}
	}

	entries, err := s.loadAllEntries(ctx)
	if err != nil {
		return nil, wrapError("query", err)
	}

	var relIndex *relationIndex
	if query.Relations != nil {
		relIndex, err = s.loadRelationIndex(ctx)
		if err != nil {
			return nil, wrapError("query", err)
		}
	}

	if query.Expression != nil {
		filtered := entries[:0]
		for _, entry := range entries {
			ok, err := query.Expression.matchExpression(entry.Expression)
			if err != nil {
				return nil, wrapError("query", err)
			}
			if ok {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	if query.Context != nil {
		filtered := entries[:0]
		for _, entry := range entries {
			if query.Context.matchContext(entry.Context) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	if query.Temporal != nil {
		filtered := entries[:0]
		for _, entry := range entries {
			if query.Temporal.matchTemporal(entry.CreatedAt, entry.UpdatedAt) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	if query.Relations != nil {
		filtered := entries[:0]
		for _, entry := range entries {
			if query.Relations.matchRelations(relIndex, entry.ID) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	scores := make([]float64, len(entries))
	for i := range scores {
		scores[i] = 1.0
	}

	if query.Meaning != nil {
		scores, err = s.scoreEntries(ctx, query.Meaning.Vector, entries)
		if err != nil {
			return nil, wrapError("query", err)
		}

		if query.Meaning.Threshold >= 0 {
			keptEntries := entries[:0]
			keptScores := scores[:0]
			for i, entry := range entries {
				if scores[i] >= query.Meaning.Threshold {
					keptEntries = append(keptEntries, entry)
					keptScores = append(keptScores, scores[i])
				}
			}
			entries, scores = keptEntries, keptScores
		}

		sortByScore(entries, scores)
	}

	if query.Limit > 0 && len(entries) > query.Limit {
		entries = entries[:query.Limit]
		scores = scores[:query.Limit]
	}

	results := make([]QueryResult, 0, len(entries))
	for i, entry := range entries {
		relations, err := s.loadRelations(ctx, entry.ID)
		if err != nil {
			return nil, wrapError("query", err)
		}
		entry.Relations = relations

		result := QueryResult{
			Entry: entry.clone(),
			Score: scores[i],
		}
		if query.Explain {
			result.Explanation = explain(query, scores[i])
		}
		results = append(results, result)
	}

	return results, nil
}

func (s *SQLiteStore) validateMeaningFilter(filter *MeaningFilter) error {
	if len(filter.Vector) == 0 {
		return fmt.Errorf("%w: query vector is empty", ErrInvalidVector)
	}
	if s.dim > 0 && len(filter.Vector) != s.dim {
		return fmt.Errorf("%w: store dimension is %d, got %d",
			ErrInvalidDimension, s.dim, len(filter.Vector))
	}
	return nil
}

// loadAllEntries scans the full store in insertion order
func (s *SQLiteStore) loadAllEntries(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meaning, checksum, expression, context, created_at, updated_at
		FROM entries ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// relationIndex is an undirected adjacency view over the relations table
type relationIndex struct {
	adjacency map[uuid.UUID][]uuid.UUID
	related   map[uuid.UUID]bool
	bfsCache  map[string]map[uuid.UUID]bool
}

func (s *SQLiteStore) loadRelationIndex(ctx context.Context) (*relationIndex, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id FROM relations")
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	index := &relationIndex{
		adjacency: make(map[uuid.UUID][]uuid.UUID),
		related:   make(map[uuid.UUID]bool),
		bfsCache:  make(map[string]map[uuid.UUID]bool),
	}

	for rows.Next() {
		var fromStr, toStr string
		if err := rows.Scan(&fromStr, &toStr); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}

		fromID, err := uuid.Parse(fromStr)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed relation id %q", ErrCorruptStore, fromStr)
		}
		toID, err := uuid.Parse(toStr)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed relation id %q", ErrCorruptStore, toStr)
		}

		index.adjacency[fromID] = append(index.adjacency[fromID], toID)
		index.adjacency[toID] = append(index.adjacency[toID], fromID)
		index.related[fromID] = true
		index.related[toID] = true
	}

	return index, rows.Err()
}

// withinDistance returns the set of IDs reachable from `from` in at most
// maxHops edges, excluding the start itself. Results are memoized per query.
func (idx *relationIndex) withinDistance(from uuid.UUID, maxHops int) map[uuid.UUID]bool {
	cacheKey := fmt.Sprintf("%s/%d", from, maxHops)
	if cached, ok := idx.bfsCache[cacheKey]; ok {
		return cached
	}

	results := make(map[uuid.UUID]bool)
	if maxHops <= 0 {
		idx.bfsCache[cacheKey] = results
		return results
	}

	visited := map[uuid.UUID]bool{from: true}
	type hop struct {
		id    uuid.UUID
		depth int
	}
	queue := []hop{{id: from, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxHops {
			continue
		}

		for _, neighbor := range idx.adjacency[current.id] {
			if !visited[neighbor] {
				visited[neighbor] = true
				results[neighbor] = true
				queue = append(queue, hop{id: neighbor, depth: current.depth + 1})
			}
		}
	}

	idx.bfsCache[cacheKey] = results
	return results
}

func explain(query *Query, score float64) string {
	var parts []string

	if query.Meaning != nil {
		parts = append(parts, fmt.Sprintf("Semantic similarity: %.2f%%", score*100.0))
	}
	if query.Expression != nil {
		parts = append(parts, "Matched "+query.Expression.describe())
	}
	if query.Context != nil {
		parts = append(parts, "Matched "+query.Context.describe())
	}
	if query.Temporal != nil {
		parts = append(parts, "Matched "+query.Temporal.describe())
	}
	if query.Relations != nil {
		parts = append(parts, "Matched "+query.Relations.describe())
	}

	return strings.Join(parts, ", ")
}
