// Package dedup tracks inbound event keys that have already been handled so
// that platform redeliveries are processed at most once.
package dedup

import (
	"context"
	"sync"
)

// Store records event keys. MarkIfNew is a single atomic check-and-set:
// it returns true exactly once per key, for the caller that inserted it.
type Store interface {
	MarkIfNew(ctx context.Context, key string) (bool, error)
	Close() error
}

// MemoryStore keeps seen keys for the lifetime of the process. There is no
// eviction; the set resets on restart.
type MemoryStore struct {
	seen sync.Map // key → struct{}
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// MarkIfNew records key and reports whether it was not seen before.
func (s *MemoryStore) MarkIfNew(_ context.Context, key string) (bool, error) {
	_, loaded := s.seen.LoadOrStore(key, struct{}{})
	return !loaded, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
