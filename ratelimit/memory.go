package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery controls how often Take scans for expired buckets. Keys are
// unbounded (IP plus email combinations), so without pruning the map grows
// for the life of the process.
const sweepEvery = 128

// MemoryStore is a process-local Store. Counters do not survive restarts
// and are not shared between replicas.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	takes   int
	now     func() time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

// NewMemoryStore creates an empty in-process bucket store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (s *MemoryStore) Take(_ context.Context, key string, window time.Duration, max int) (bool, int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.takes++
	if s.takes%sweepEvery == 0 {
		s.sweepLocked(now)
	}

	b, ok := s.buckets[key]
	if !ok || !b.resetAt.After(now) {
		b = &bucket{resetAt: now.Add(window)}
		s.buckets[key] = b
	}
	if b.count >= max {
		return false, b.count, b.resetAt.Sub(now), nil
	}
	b.count++
	return true, b.count, b.resetAt.Sub(now), nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, b := range s.buckets {
		if !b.resetAt.After(now) {
			delete(s.buckets, key)
		}
	}
}
