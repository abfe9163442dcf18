package buildstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [Store]. Builds are lost on restart.
type MemStore struct {
	mu     sync.RWMutex
	builds map[string]Build
	now    func() time.Time
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{builds: make(map[string]Build), now: time.Now}
}

// Save implements [Store.Save].
func (s *MemStore) Save(_ context.Context, b *Build) error {
	if err := stamp(b, s.now()); err != nil {
		return fmt.Errorf("buildstore: generate id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds[b.ID] = *b
	return nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, id string) (Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.builds[id]
	if !ok {
		return Build{}, ErrNotFound
	}
	return b, nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context, opts ListOptions) ([]Build, error) {
	s.mu.RLock()
	out := make([]Build, 0, len(s.builds))
	for _, b := range s.builds {
		if opts.Target != "" && b.Target != opts.Target {
			continue
		}
		out = append(out, b)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Build) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n := opts.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.builds, id)
	return nil
}

// Ping always succeeds.
func (s *MemStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemStore) Close() {}
