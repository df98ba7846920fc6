package contextdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionHappyPath(t *testing.T) {
	db := openTestDB(t)
	session := db.NewSession()

	assert.True(t, session.Insert("hello from a session", []float32{1, 0}))
	assert.Empty(t, session.LastErrorMessage())

	count, ok := session.Count()
	assert.True(t, ok)
	assert.Equal(t, 1, count)

	results, ok := session.QueryMeaning([]float32{1, 0}, -1, 0)
	assert.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "hello from a session", results[0].Expression)

	results, ok = session.QueryExpressionContains("session", 0)
	assert.True(t, ok)
	assert.Len(t, results, 1)
}

func TestSessionRecordsLastError(t *testing.T) {
	db := openTestDB(t)
	session := db.NewSession()

	assert.False(t, session.Insert("empty vector", nil))
	assert.Contains(t, session.LastErrorMessage(), "invalid vector")

	// Reading the slot does not clear it.
	assert.Contains(t, session.LastErrorMessage(), "invalid vector")

	// The next success does.
	assert.True(t, session.Insert("valid", []float32{1, 2}))
	assert.Empty(t, session.LastErrorMessage())
}

func TestSessionFailureOverwritesPreviousError(t *testing.T) {
	db := openTestDB(t)
	session := db.NewSession()

	require.True(t, session.Insert("pinned", []float32{1, 2}))

	assert.False(t, session.Insert("wrong dims", []float32{1}))
	assert.Contains(t, session.LastErrorMessage(), "dimension")

	assert.False(t, session.Insert("pinned", []float32{1, 2}))
	assert.Contains(t, session.LastErrorMessage(), "duplicate")
}

func TestSessionsDoNotShareErrorState(t *testing.T) {
	db := openTestDB(t)
	failing := db.NewSession()
	clean := db.NewSession()

	require.True(t, clean.Insert("fine", []float32{1, 1}))
	require.False(t, failing.Insert("broken", nil))

	assert.NotEmpty(t, failing.LastErrorMessage())
	assert.Empty(t, clean.LastErrorMessage())

	// A success elsewhere leaves the failing session's slot intact.
	count, ok := clean.Count()
	assert.True(t, ok)
	assert.Equal(t, 1, count)
	assert.NotEmpty(t, failing.LastErrorMessage())
}

func TestSessionQueryDistinguishesEmptyFromFailure(t *testing.T) {
	db := openTestDB(t)
	session := db.NewSession()

	require.True(t, session.Insert("seed", []float32{1, 0}))

	results, ok := session.QueryExpressionContains("no such text", 0)
	assert.True(t, ok)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, session.LastErrorMessage())

	results, ok = session.QueryMeaning([]float32{1, 2, 3}, -1, 0)
	assert.False(t, ok)
	assert.Nil(t, results)
	assert.Contains(t, session.LastErrorMessage(), "dimension")
}

func TestSessionAfterClose(t *testing.T) {
	db := openTestDB(t)
	session := db.NewSession()
	require.NoError(t, db.Close())

	_, ok := session.Count()
	assert.False(t, ok)
	assert.Contains(t, session.LastErrorMessage(), "closed")
}
