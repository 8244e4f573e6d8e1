package store

import (
	"context"
	"sort"
	"sync"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// MemoryStore keeps runs in process memory. Runs are stored as encoded
// payloads so that callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string][]byte
	created     map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string][]byte)
	s.created = make(map[string]int64)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	payload, err := encodeRun(run)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = payload
	s.created[run.ID] = run.CreatedAt.UnixNano()
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return Run{}, false, errNotInitialized
	}

	payload, ok := s.runs[id]
	if !ok {
		return Run{}, false, nil
	}
	run, err := decodeRun(payload)
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, errNotInitialized
	}

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.created[ids[i]], s.created[ids[j]]
		if a != b {
			return a > b
		}
		return ids[i] < ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		run, err := decodeRun(s.runs[id])
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	delete(s.runs, id)
	delete(s.created, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var errNotInitialized = errors.New(errors.KindConflict, "store is not initialized")
