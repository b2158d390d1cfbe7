package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("store unavailable")

// Store is a string key-value store that survives process restarts.
// Get reports absent keys with ok == false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
	// Keys lists stored keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the store for the named backend. path is ignored by the memory
// backend, whose contents last only as long as the process.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendSQLite:
		return OpenSQLite(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (available: sqlite, memory)", backend)
	}
}
