package core

import (
	"bytes"
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// parallelScanThreshold is the entry count above which similarity scoring is
// sharded across goroutines. Below it the goroutine overhead dominates.
const parallelScanThreshold = 2048

// scoreEntries computes the similarity of every entry against the query
// vector using the configured SimilarityFunc (cosine by default). Large scans
// are sharded across GOMAXPROCS workers; output order matches input order
// either way.
func (s *SQLiteStore) scoreEntries(ctx context.Context, query []float32, entries []*Entry) ([]float64, error) {
	scores := make([]float64, len(entries))

	if len(entries) < parallelScanThreshold {
		for i, entry := range entries {
			scores[i] = s.similarityFn(query, entry.Meaning)
		}
		return scores, nil
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(entries) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(entries); start += chunk {
		end := min(start+chunk, len(entries))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				scores[i] = s.similarityFn(query, entries[i].Meaning)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scores, nil
}

// sortByScore orders entries by score descending; equal scores fall back to
// ID ascending byte-wise so rankings are deterministic across runs.
func sortByScore(entries []*Entry, scores []float64) {
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if scores[i] != scores[j] {
			return scores[i] > scores[j]
		}
		return bytes.Compare(entries[i].ID[:], entries[j].ID[:]) < 0
	})

	sortedEntries := make([]*Entry, len(entries))
	sortedScores := make([]float64, len(scores))
	for pos, idx := range order {
		sortedEntries[pos] = entries[idx]
		sortedScores[pos] = scores[idx]
	}
	copy(entries, sortedEntries)
	copy(scores, sortedScores)
}
