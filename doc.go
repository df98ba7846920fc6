// Package contextdb is an embeddable store for short text expressions paired
// with fixed-length meaning vectors (embeddings).
//
// Every record holds a content-derived 16-byte identifier, an immutable
// expression string, and its meaning vector. The store is opened against a
// path (SQLite via modernc.org/sqlite, no CGO) and answers two query shapes:
// semantic search over meaning vectors with a similarity threshold and result
// cap, and substring search over expression text.
//
// # Quick Start
//
//	db, err := contextdb.Open("context.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	ctx := context.Background()
//	db.Insert(ctx, "cat", []float32{1, 0, 0})
//	db.Insert(ctx, "dog", []float32{0, 1, 0})
//
//	results, _ := db.QueryMeaning(ctx, []float32{1, 0, 0}, 0.9, 10)
//	// results[0].Expression == "cat", results[0].Score ≈ 1.0
//
// # Semantics
//
//   - Similarity is cosine similarity (pinned contract); results are ordered
//     by score descending, ties broken by identifier ascending.
//   - A result's score must be >= the threshold; pass a negative threshold to
//     disable filtering.
//   - Limit <= 0 means unlimited.
//   - Substring search is case-insensitive; the empty substring matches every
//     record, results keep insertion order and carry the fixed score 1.0.
//   - The first inserted vector pins the store's dimensionality; mismatched
//     inserts and queries fail.
//
// Richer queries — context metadata filters, temporal filters, relation graph
// traversal, regex/prefix/equality expression filters — are available through
// pkg/core's Query builder via DB.Query.
//
// For callers that prefer a boolean pass/fail surface with a retrievable last
// error message (the shape used across a C ABI), see Session.
package contextdb
