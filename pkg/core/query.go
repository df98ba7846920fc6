package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Query combines semantic, textual, context, graph and temporal filters into
// a single request. A zero query matches every entry in insertion order.
type Query struct {
	// Meaning enables semantic similarity search
	Meaning *MeaningFilter

	// Expression filters on the expression text
	Expression ExpressionFilter

	// Context filters on the JSON context metadata
	Context ContextFilter

	// Relations filters on graph relationships
	Relations RelationFilter

	// Temporal filters on creation/update timestamps
	Temporal TemporalFilter

	// Limit caps the number of results. Values <= 0 mean unlimited.
	Limit int

	// Explain attaches a human-readable match explanation to each result
	Explain bool
}

// MeaningFilter holds semantic similarity search parameters
type MeaningFilter struct {
	// Vector is the query embedding
	Vector []float32

	// Threshold is the minimum similarity score for a result to be kept
	// (score >= threshold). Negative values disable the threshold.
	Threshold float64
}

// NewQuery creates an empty query
func NewQuery() *Query {
	return &Query{Limit: 0}
}

// WithMeaning adds semantic search by vector similarity. A negative threshold
// disables threshold filtering.
func (q *Query) WithMeaning(vector []float32, threshold float64) *Query {
	q.Meaning = &MeaningFilter{Vector: vector, Threshold: threshold}
	return q
}

// WithExpression adds a text filter on the expression field
func (q *Query) WithExpression(filter ExpressionFilter) *Query {
	q.Expression = filter
	return q
}

// WithContext adds a context metadata filter
func (q *Query) WithContext(filter ContextFilter) *Query {
	q.Context = filter
	return q
}

// WithRelations adds a graph relationship filter
func (q *Query) WithRelations(filter RelationFilter) *Query {
	q.Relations = filter
	return q
}

// WithTemporal adds a timestamp filter
func (q *Query) WithTemporal(filter TemporalFilter) *Query {
	q.Temporal = filter
	return q
}

// WithLimit caps the number of results
func (q *Query) WithLimit(limit int) *Query {
	q.Limit = limit
	return q
}

// WithExplanation enables match explanations
func (q *Query) WithExplanation() *Query {
	q.Explain = true
	return q
}

// QueryResult is one matching entry with its score. Its Entry is a copy and
// stays valid after further store mutations or Close.
type QueryResult struct {
	// Entry is a copy of the matching entry
	Entry Entry

	// Score is the similarity score for meaning queries. Non-meaning matches
	// carry the fixed sentinel 1.0.
	Score float64

	// Explanation says why the entry matched, when requested
	Explanation string
}

// ExpressionFilter matches against an entry's expression text
type ExpressionFilter interface {
	matchExpression(expression string) (bool, error)
	describe() string
}

type expressionEquals struct{ value string }
type expressionContains struct{ value string }
type expressionStartsWith struct{ value string }
type expressionMatches struct{ pattern string }

// ExpressionEquals matches expressions exactly equal to value
func ExpressionEquals(value string) ExpressionFilter {
	return expressionEquals{value: value}
}

// ExpressionContains matches expressions containing value as a substring.
// Matching is case-insensitive; an empty value matches every entry.
func ExpressionContains(value string) ExpressionFilter {
	return expressionContains{value: value}
}

// ExpressionStartsWith matches expressions beginning with value
func ExpressionStartsWith(value string) ExpressionFilter {
	return expressionStartsWith{value: value}
}

// ExpressionMatches matches expressions against a regular expression
func ExpressionMatches(pattern string) ExpressionFilter {
	return expressionMatches{pattern: pattern}
}

func (f expressionEquals) matchExpression(expression string) (bool, error) {
	return expression == f.value, nil
}

func (f expressionEquals) describe() string { return "expression equals filter" }

func (f expressionContains) matchExpression(expression string) (bool, error) {
	return strings.Contains(strings.ToLower(expression), strings.ToLower(f.value)), nil
}

func (f expressionContains) describe() string { return "expression contains filter" }

func (f expressionStartsWith) matchExpression(expression string) (bool, error) {
	return strings.HasPrefix(expression, f.value), nil
}

func (f expressionStartsWith) describe() string { return "expression prefix filter" }

func (f expressionMatches) matchExpression(expression string) (bool, error) {
	re, err := regexp.Compile(f.pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex: %w", err)
	}
	return re.MatchString(expression), nil
}

func (f expressionMatches) describe() string { return "expression regex filter" }

// TemporalFilter matches against entry timestamps
type TemporalFilter interface {
	matchTemporal(createdAt, updatedAt time.Time) bool
	describe() string
}

type createdAfter struct{ t time.Time }
type createdBefore struct{ t time.Time }
type createdBetween struct{ start, end time.Time }
type updatedAfter struct{ t time.Time }
type updatedBefore struct{ t time.Time }

// CreatedAfter matches entries created strictly after t
func CreatedAfter(t time.Time) TemporalFilter { return createdAfter{t: t} }

// CreatedBefore matches entries created strictly before t
func CreatedBefore(t time.Time) TemporalFilter { return createdBefore{t: t} }

// CreatedBetween matches entries created strictly between start and end
func CreatedBetween(start, end time.Time) TemporalFilter {
	return createdBetween{start: start, end: end}
}

// UpdatedAfter matches entries updated strictly after t
func UpdatedAfter(t time.Time) TemporalFilter { return updatedAfter{t: t} }

// UpdatedBefore matches entries updated strictly before t
func UpdatedBefore(t time.Time) TemporalFilter { return updatedBefore{t: t} }

func (f createdAfter) matchTemporal(createdAt, _ time.Time) bool { return createdAt.After(f.t) }
func (f createdAfter) describe() string                          { return "created-after filter" }

func (f createdBefore) matchTemporal(createdAt, _ time.Time) bool { return createdAt.Before(f.t) }
func (f createdBefore) describe() string                          { return "created-before filter" }

func (f createdBetween) matchTemporal(createdAt, _ time.Time) bool {
	return createdAt.After(f.start) && createdAt.Before(f.end)
}
func (f createdBetween) describe() string { return "created-between filter" }

func (f updatedAfter) matchTemporal(_, updatedAt time.Time) bool { return updatedAt.After(f.t) }
func (f updatedAfter) describe() string                          { return "updated-after filter" }

func (f updatedBefore) matchTemporal(_, updatedAt time.Time) bool { return updatedAt.Before(f.t) }
func (f updatedBefore) describe() string                          { return "updated-before filter" }

// RelationFilter matches against the store's relation graph
type RelationFilter interface {
	matchRelations(index *relationIndex, id uuid.UUID) bool
	describe() string
}

type directlyRelatedTo struct{ id uuid.UUID }
type withinDistance struct {
	from    uuid.UUID
	maxHops int
}
type hasRelations struct{}
type noRelations struct{}

// DirectlyRelatedTo matches entries sharing a relation edge with id
func DirectlyRelatedTo(id uuid.UUID) RelationFilter { return directlyRelatedTo{id: id} }

// WithinDistance matches entries reachable from `from` in at most maxHops
// relation edges (the starting entry itself is excluded)
func WithinDistance(from uuid.UUID, maxHops int) RelationFilter {
	return withinDistance{from: from, maxHops: maxHops}
}

// HasRelations matches entries participating in any relation
func HasRelations() RelationFilter { return hasRelations{} }

// NoRelations matches entries participating in no relation
func NoRelations() RelationFilter { return noRelations{} }

func (f directlyRelatedTo) matchRelations(index *relationIndex, id uuid.UUID) bool {
	for _, neighbor := range index.adjacency[f.id] {
		if neighbor == id {
			return true
		}
	}
	return false
}

func (f directlyRelatedTo) describe() string { return "directly-related filter" }

func (f withinDistance) matchRelations(index *relationIndex, id uuid.UUID) bool {
	return index.withinDistance(f.from, f.maxHops)[id]
}

func (f withinDistance) describe() string { return "relation-distance filter" }

func (f hasRelations) matchRelations(index *relationIndex, id uuid.UUID) bool {
	return index.related[id]
}

func (f hasRelations) describe() string { return "has-relations filter" }

func (f noRelations) matchRelations(index *relationIndex, id uuid.UUID) bool {
	return !index.related[id]
}

func (f noRelations) describe() string { return "no-relations filter" }
