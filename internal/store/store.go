// Package store provides the key→blob persistence abstraction the
// donation pipeline runs on. Backends may be eventually consistent: a Get
// immediately after a Put is allowed to miss the write, so callers must
// not assume read-your-writes.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned by PutIf when the stored version no longer
	// matches the caller's.
	ErrConflict = errors.New("store: version conflict")
	// ErrUnavailable wraps backend read/write failures.
	ErrUnavailable = errors.New("store: unavailable")
)

// Record is one stored key→blob pair plus its backend version token.
type Record struct {
	Key     string
	Value   []byte
	Version string
}

// Store is a key→blob backend with get/put/list-by-prefix semantics and a
// conditional write for read-modify-write callers.
type Store interface {
	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)
	// Put writes value under key unconditionally.
	Put(ctx context.Context, key string, value []byte) error
	// PutIf writes value only while the stored version still equals
	// version; an empty version requires that the key does not exist yet.
	// Returns ErrConflict when the precondition fails.
	PutIf(ctx context.Context, key string, value []byte, version string) error
	// List returns all records whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Record, error)
}
