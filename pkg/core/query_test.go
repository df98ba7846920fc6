package core

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, entries ...*Entry) *SQLiteStore {
	t.Helper()

	store, _ := newTestStore(t)
	for _, entry := range entries {
		require.NoError(t, store.Insert(context.Background(), entry))
	}
	return store
}

func expressions(results []QueryResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Entry.Expression
	}
	return out
}

func TestQueryMeaningOrdering(t *testing.T) {
	store := seedStore(t,
		NewEntry([]float32{0, 1}, "orthogonal"),
		NewEntry([]float32{1, 0}, "exact"),
		NewEntry([]float32{1, 0.2}, "close"),
	)

	results, err := store.Query(context.Background(),
		NewQuery().WithMeaning([]float32{1, 0}, -1))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"exact", "close", "orthogonal"}, expressions(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestQueryMeaningThreshold(t *testing.T) {
	store := seedStore(t,
		NewEntry([]float32{1, 0}, "exact"),
		NewEntry([]float32{0.9, 0.1}, "near"),
		NewEntry([]float32{0, 1}, "far"),
	)
	ctx := context.Background()

	results, err := store.Query(ctx, NewQuery().WithMeaning([]float32{1, 0}, 0.9))
	require.NoError(t, err)
	assert.Equal(t, []string{"exact", "near"}, expressions(results))

	// Entries scoring exactly at the threshold are kept.
	results, err = store.Query(ctx, NewQuery().WithMeaning([]float32{1, 0}, 1.0))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "exact", results[0].Entry.Expression)

	// A negative threshold disables filtering entirely.
	results, err = store.Query(ctx, NewQuery().WithMeaning([]float32{1, 0}, -1))
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestQueryMeaningTieBreakByID(t *testing.T) {
	// Same vector, different expressions: identical scores, so results must
	// rank by ID bytes ascending.
	a := NewEntry([]float32{1, 1}, "alpha")
	b := NewEntry([]float32{1, 1}, "bravo")
	c := NewEntry([]float32{1, 1}, "charlie")
	store := seedStore(t, c, a, b)

	results, err := store.Query(context.Background(),
		NewQuery().WithMeaning([]float32{1, 1}, -1))
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		prev := results[i-1].Entry.ID
		curr := results[i].Entry.ID
		assert.Equal(t, results[i-1].Score, results[i].Score)
		assert.Negative(t, bytes.Compare(prev[:], curr[:]))
	}
}

func TestQueryMeaningValidation(t *testing.T) {
	store := seedStore(t, NewEntry([]float32{1, 2, 3}, "three dims"))
	ctx := context.Background()

	_, err := store.Query(ctx, NewQuery().WithMeaning(nil, -1))
	assert.ErrorIs(t, err, ErrInvalidVector)

	_, err = store.Query(ctx, NewQuery().WithMeaning([]float32{1, 2}, -1))
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestQueryExpressionFilters(t *testing.T) {
	store := seedStore(t,
		NewEntry([]float32{1, 0}, "The cat sat on the mat"),
		NewEntry([]float32{0, 1}, "A dog barked at the CAT"),
		NewEntry([]float32{1, 1}, "nothing to see here"),
	)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter ExpressionFilter
		want   []string
	}{
		{
			name:   "contains is case-insensitive",
			filter: ExpressionContains("cat"),
			want:   []string{"The cat sat on the mat", "A dog barked at the CAT"},
		},
		{
			name:   "equals is exact",
			filter: ExpressionEquals("nothing to see here"),
			want:   []string{"nothing to see here"},
		},
		{
			name:   "prefix",
			filter: ExpressionStartsWith("The cat"),
			want:   []string{"The cat sat on the mat"},
		},
		{
			name:   "regex",
			filter: ExpressionMatches(`^A dog.*CAT$`),
			want:   []string{"A dog barked at the CAT"},
		},
		{
			name:   "no matches yields empty non-nil slice",
			filter: ExpressionContains("zebra"),
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Query(ctx, NewQuery().WithExpression(tt.filter))
			require.NoError(t, err)
			require.NotNil(t, results)
			assert.Equal(t, tt.want, expressions(results))
			for _, r := range results {
				assert.Equal(t, 1.0, r.Score)
			}
		})
	}
}

func TestQueryExpressionInvalidRegex(t *testing.T) {
	store := seedStore(t, NewEntry([]float32{1}, "anything"))

	_, err := store.Query(context.Background(),
		NewQuery().WithExpression(ExpressionMatches(`[unclosed`)))
	assert.Error(t, err)
}

func TestQueryInsertionOrderWithoutMeaning(t *testing.T) {
	store := seedStore(t,
		NewEntry([]float32{3, 0}, "first"),
		NewEntry([]float32{2, 0}, "second"),
		NewEntry([]float32{1, 0}, "third"),
	)

	results, err := store.Query(context.Background(), NewQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, expressions(results))
}

func TestQueryLimit(t *testing.T) {
	store := seedStore(t,
		NewEntry([]float32{1, 0}, "one"),
		NewEntry([]float32{0.9, 0.1}, "two"),
		NewEntry([]float32{0.8, 0.2}, "three"),
	)
	ctx := context.Background()

	results, err := store.Query(ctx,
		NewQuery().WithMeaning([]float32{1, 0}, -1).WithLimit(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, expressions(results))

	// Zero and negative limits mean unlimited.
	results, err = store.Query(ctx, NewQuery().WithLimit(0))
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = store.Query(ctx, NewQuery().WithLimit(-5))
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestQueryContextFilters(t *testing.T) {
	store := seedStore(t,
		NewEntry([]float32{1, 0}, "prod event").
			WithContext(json.RawMessage(`{"env":"prod","tags":["urgent","db"],"retries":3}`)),
		NewEntry([]float32{0, 1}, "dev event").
			WithContext(json.RawMessage(`{"env":"dev","tags":["db"]}`)),
		NewEntry([]float32{1, 1}, "no context"),
	)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter ContextFilter
		want   []string
	}{
		{
			name:   "path exists",
			filter: ContextPathExists("/retries"),
			want:   []string{"prod event"},
		},
		{
			name:   "path equals string",
			filter: ContextPathEquals("/env", "prod"),
			want:   []string{"prod event"},
		},
		{
			name:   "path equals number",
			filter: ContextPathEquals("/retries", 3),
			want:   []string{"prod event"},
		},
		{
			name:   "array element by index",
			filter: ContextPathEquals("/tags/0", "urgent"),
			want:   []string{"prod event"},
		},
		{
			name:   "array contains",
			filter: ContextPathContains("/tags", "db"),
			want:   []string{"prod event", "dev event"},
		},
		{
			name:   "and",
			filter: ContextAnd(ContextPathEquals("/env", "dev"), ContextPathContains("/tags", "db")),
			want:   []string{"dev event"},
		},
		{
			name:   "or",
			filter: ContextOr(ContextPathEquals("/env", "prod"), ContextPathEquals("/env", "dev")),
			want:   []string{"prod event", "dev event"},
		},
		{
			name:   "entries without context never match",
			filter: ContextPathExists("/env"),
			want:   []string{"prod event", "dev event"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Query(ctx, NewQuery().WithContext(tt.filter))
			require.NoError(t, err)
			assert.Equal(t, tt.want, expressions(results))
		})
	}
}

func TestQueryTemporalFilters(t *testing.T) {
	old := NewEntry([]float32{1, 0}, "old")
	old.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	old.UpdatedAt = old.CreatedAt

	recent := NewEntry([]float32{0, 1}, "recent")
	recent.CreatedAt = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	recent.UpdatedAt = recent.CreatedAt

	store := seedStore(t, old, recent)
	ctx := context.Background()
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	results, err := store.Query(ctx, NewQuery().WithTemporal(CreatedAfter(cutoff)))
	require.NoError(t, err)
	assert.Equal(t, []string{"recent"}, expressions(results))

	results, err = store.Query(ctx, NewQuery().WithTemporal(CreatedBefore(cutoff)))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, expressions(results))

	results, err = store.Query(ctx, NewQuery().WithTemporal(
		CreatedBetween(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), cutoff)))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, expressions(results))

	results, err = store.Query(ctx, NewQuery().WithTemporal(UpdatedAfter(cutoff)))
	require.NoError(t, err)
	assert.Equal(t, []string{"recent"}, expressions(results))
}

func TestQueryRelationFilters(t *testing.T) {
	// Chain: a -> b -> c, with d isolated.
	a := NewEntry([]float32{1, 0}, "a")
	b := NewEntry([]float32{0, 1}, "b")
	c := NewEntry([]float32{1, 1}, "c")
	d := NewEntry([]float32{2, 2}, "d")

	b.AddRelation(a.ID)
	c.AddRelation(b.ID)

	store := seedStore(t, a, b, c, d)
	ctx := context.Background()

	results, err := store.Query(ctx, NewQuery().WithRelations(DirectlyRelatedTo(a.ID)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, expressions(results))

	// One hop from a reaches b only; two hops adds c. Relations are
	// traversed as undirected edges.
	results, err = store.Query(ctx, NewQuery().WithRelations(WithinDistance(a.ID, 1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, expressions(results))

	results, err = store.Query(ctx, NewQuery().WithRelations(WithinDistance(a.ID, 2)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, expressions(results))

	results, err = store.Query(ctx, NewQuery().WithRelations(WithinDistance(a.ID, 0)))
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.Query(ctx, NewQuery().WithRelations(HasRelations()))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, expressions(results))

	results, err = store.Query(ctx, NewQuery().WithRelations(NoRelations()))
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, expressions(results))
}

func TestQueryCombinedFilters(t *testing.T) {
	store := seedStore(t,
		NewEntry([]float32{1, 0}, "database migration complete").
			WithContext(json.RawMessage(`{"env":"prod"}`)),
		NewEntry([]float32{0.95, 0.05}, "database backup complete").
			WithContext(json.RawMessage(`{"env":"dev"}`)),
		NewEntry([]float32{0.9, 0.1}, "cache warmup complete").
			WithContext(json.RawMessage(`{"env":"prod"}`)),
	)

	results, err := store.Query(context.Background(), NewQuery().
		WithMeaning([]float32{1, 0}, -1).
		WithExpression(ExpressionContains("database")).
		WithContext(ContextPathEquals("/env", "prod")))
	require.NoError(t, err)
	assert.Equal(t, []string{"database migration complete"}, expressions(results))
}

func TestQueryExplanation(t *testing.T) {
	store := seedStore(t, NewEntry([]float32{1, 0}, "explain me"))

	results, err := store.Query(context.Background(), NewQuery().
		WithMeaning([]float32{1, 0}, -1).
		WithExpression(ExpressionContains("explain")).
		WithExplanation())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Contains(t, results[0].Explanation, "Semantic similarity: 100.00%")
	assert.Contains(t, results[0].Explanation, "expression contains filter")

	// Without WithExplanation the field stays empty.
	results, err = store.Query(context.Background(),
		NewQuery().WithMeaning([]float32{1, 0}, -1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Explanation)
}

func TestQueryEmptyStore(t *testing.T) {
	store, _ := newTestStore(t)

	results, err := store.Query(context.Background(),
		NewQuery().WithMeaning([]float32{1, 2, 3}, 0.5))
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestQueryResultsDoNotAliasStore(t *testing.T) {
	entry := NewEntry([]float32{1, 2}, "aliasing check")
	store := seedStore(t, entry)
	ctx := context.Background()

	results, err := store.Query(ctx, NewQuery())
	require.NoError(t, err)
	require.Len(t, results, 1)

	results[0].Entry.Meaning[0] = 99

	again, err := store.Query(ctx, NewQuery())
	require.NoError(t, err)
	assert.Equal(t, float32(1), again[0].Entry.Meaning[0])
}

func TestQueryRelationsIncludedInResults(t *testing.T) {
	target := NewEntry([]float32{1, 0}, "target")
	source := NewEntry([]float32{0, 1}, "source")
	source.AddRelation(target.ID)
	store := seedStore(t, target, source)

	results, err := store.Query(context.Background(),
		NewQuery().WithExpression(ExpressionEquals("source")))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []uuid.UUID{target.ID}, results[0].Entry.Relations)
}
