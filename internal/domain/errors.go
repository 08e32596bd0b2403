package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid configuration: unknown strategy names,
	// out-of-range parameters, incompatible embedding dimensions.
	ErrConfiguration = errors.New("configuration error")

	// ErrDimensionMismatch is a configuration error raised when vectors of
	// different dimensionality meet in one index.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrConfiguration)

	// ErrEmbeddingProvider wraps failures of the external embedding service.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrIndexClosed is returned when inserting into a torn-down index.
	ErrIndexClosed = errors.New("index closed")

	// ErrDuplicateChunk is returned when a chunk ID is already present in an index.
	ErrDuplicateChunk = errors.New("duplicate chunk id")

	// ErrDuplicateDocument is returned when a document ID is already indexed
	// in the target corpus.
	ErrDuplicateDocument = errors.New("duplicate document id")

	// ErrCorruptSnapshot marks a stored corpus snapshot that cannot be
	// trusted, for example one left behind by an interrupted save.
	ErrCorruptSnapshot = errors.New("corrupt corpus snapshot")

	// ErrSessionNotFound is returned for unknown or ended sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// ConfigError describes which setting is invalid.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigError) Unwrap() error { return ErrConfiguration }
