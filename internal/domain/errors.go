package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals a malformed search request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidEvent signals a malformed interaction event.
	ErrInvalidEvent = errors.New("invalid interaction event")
	// ErrInvalidContent signals a malformed content item.
	ErrInvalidContent = errors.New("invalid content item")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrStaleVersion signals a content update carrying an outdated version stamp.
	ErrStaleVersion = errors.New("stale content version")

	// ErrBranchTimeout signals that a retrieval branch exceeded its time budget.
	ErrBranchTimeout = errors.New("branch timeout")
	// ErrBranchUnavailable signals that a retrieval branch was skipped by its circuit breaker.
	ErrBranchUnavailable = errors.New("branch unavailable")
	// ErrAllBranchesFailed signals that no retrieval branch produced a result.
	ErrAllBranchesFailed = errors.New("all retrieval branches failed")
	// ErrProfileStoreUnavailable signals that a profile flush could not be committed.
	ErrProfileStoreUnavailable = errors.New("profile store unavailable")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// AllBranchesFailedError wraps ErrAllBranchesFailed with the per-branch causes.
type AllBranchesFailedError struct {
	Causes map[string]error
}

func (e *AllBranchesFailedError) Error() string {
	names := make([]string, 0, len(e.Causes))
	for name := range e.Causes {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Causes[name]))
	}
	return fmt.Sprintf("%s (%s)", ErrAllBranchesFailed.Error(), strings.Join(parts, "; "))
}

func (e *AllBranchesFailedError) Unwrap() error { return ErrAllBranchesFailed }

// NewAllBranchesFailed creates an AllBranchesFailedError.
func NewAllBranchesFailed(causes map[string]error) error {
	return &AllBranchesFailedError{Causes: causes}
}

// InvalidQueryf formats a reason and wraps it with ErrInvalidQuery.
func InvalidQueryf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
