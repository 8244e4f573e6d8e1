package store

import (
	"context"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// Open creates and initializes the store named by kind: "memory" (or
// empty) or "sqlite", which stores runs in the database file at path.
func Open(ctx context.Context, kind, path string) (Store, error) {
	var s Store
	switch kind {
	case "", "memory":
		s = NewMemoryStore()
	case "sqlite":
		s = NewSQLiteStore(path)
	default:
		return nil, errors.Configurationf("unsupported store backend: %s", kind)
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
