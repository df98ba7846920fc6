package core

import (
	"os"

	"github.com/charmbracelet/log"
)

// Config holds the store configuration
type Config struct {
	// Path is the database file location. ":memory:" or "" opens an
	// in-memory store that is discarded on Close.
	Path string

	// Dimension pins the meaning vector dimensionality. 0 means the first
	// inserted vector establishes it.
	Dimension int

	// SimilarityFn scores meaning queries. Defaults to CosineSimilarity.
	SimilarityFn SimilarityFunc

	// Logger receives structured store events. Defaults to a warn-level
	// stderr logger.
	Logger *log.Logger
}

// DefaultConfig returns a configuration with sensible defaults for the given path
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		SimilarityFn: CosineSimilarity,
		Logger:       defaultLogger(),
	}
}

func defaultLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "contextdb",
	})
	logger.SetLevel(log.WarnLevel)
	return logger
}
