package core

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// ContextFilter matches against an entry's JSON context metadata
type ContextFilter interface {
	matchContext(context json.RawMessage) bool
	describe() string
}

type contextPathExists struct{ path string }
type contextPathEquals struct {
	path  string
	value any
}
type contextPathContains struct {
	path  string
	value any
}
type contextAnd struct{ filters []ContextFilter }
type contextOr struct{ filters []ContextFilter }

// ContextPathExists matches entries whose context has a value at the given
// JSON pointer path (e.g. "/metadata/tags").
func ContextPathExists(path string) ContextFilter {
	return contextPathExists{path: path}
}

// ContextPathEquals matches entries whose context value at path equals value.
// The value is compared after JSON normalization, so Go ints match JSON numbers.
func ContextPathEquals(path string, value any) ContextFilter {
	return contextPathEquals{path: path, value: normalizeJSON(value)}
}

// ContextPathContains matches entries whose context array at path contains value
func ContextPathContains(path string, value any) ContextFilter {
	return contextPathContains{path: path, value: normalizeJSON(value)}
}

// ContextAnd combines filters; all must match
func ContextAnd(filters ...ContextFilter) ContextFilter {
	return contextAnd{filters: filters}
}

// ContextOr combines filters; at least one must match
func ContextOr(filters ...ContextFilter) ContextFilter {
	return contextOr{filters: filters}
}

func (f contextPathExists) matchContext(context json.RawMessage) bool {
	_, ok := resolvePointer(decodeContext(context), f.path)
	return ok
}

func (f contextPathExists) describe() string { return "context path-exists filter" }

func (f contextPathEquals) matchContext(context json.RawMessage) bool {
	value, ok := resolvePointer(decodeContext(context), f.path)
	return ok && reflect.DeepEqual(value, f.value)
}

func (f contextPathEquals) describe() string { return "context path-equals filter" }

func (f contextPathContains) matchContext(context json.RawMessage) bool {
	value, ok := resolvePointer(decodeContext(context), f.path)
	if !ok {
		return false
	}
	arr, ok := value.([]any)
	if !ok {
		return false
	}
	for _, item := range arr {
		if reflect.DeepEqual(item, f.value) {
			return true
		}
	}
	return false
}

func (f contextPathContains) describe() string { return "context path-contains filter" }

func (f contextAnd) matchContext(context json.RawMessage) bool {
	for _, filter := range f.filters {
		if !filter.matchContext(context) {
			return false
		}
	}
	return true
}

func (f contextAnd) describe() string { return "context AND filter" }

func (f contextOr) matchContext(context json.RawMessage) bool {
	for _, filter := range f.filters {
		if filter.matchContext(context) {
			return true
		}
	}
	return false
}

func (f contextOr) describe() string { return "context OR filter" }

func decodeContext(context json.RawMessage) any {
	if len(context) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(context, &doc); err != nil {
		return nil
	}
	return doc
}

// normalizeJSON round-trips a Go value through JSON so comparisons see the
// same shapes Unmarshal produces (float64 numbers, map[string]any objects).
func normalizeJSON(value any) any {
	data, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return value
	}
	return out
}

// resolvePointer walks a decoded JSON document along an RFC 6901 pointer
func resolvePointer(doc any, pointer string) (any, bool) {
	if pointer == "" {
		return doc, doc != nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}

	current := doc
	for _, token := range strings.Split(pointer[1:], "/") {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")

		switch node := current.(type) {
		case map[string]any:
			next, ok := node[token]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}
