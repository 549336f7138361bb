package quota

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"gifting-service/internal/domain/ports/repository"
)

var _ repository.QuotaStore = (*MemoryStore)(nil)

const defaultCacheSize = 100_000

type counter struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a process-local QuotaStore. The LRU bound keeps old day keys
// from piling up; an evicted key simply starts over at zero.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache
	now   func() time.Time
}

func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: cache, now: time.Now}, nil
}

// WithClock is for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (repository.QuotaResult, error) {
	if err := ctx.Err(); err != nil {
		return repository.QuotaResult{}, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(key, now)
	if c == nil {
		c = &counter{expiresAt: now.Add(window)}
	}
	if c.count >= int64(limit) {
		s.cache.Add(key, c)
		return repository.QuotaResult{Allowed: false, Count: c.count}, nil
	}
	c.count++
	s.cache.Add(key, c)
	return repository.QuotaResult{Allowed: true, Count: c.count}, nil
}

func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.live(key, s.now()); c != nil && c.count > 0 {
		c.count--
	}
	return nil
}

// Len reports the number of tracked keys.
func (s *MemoryStore) Len() int { return s.cache.Len() }

// live returns the unexpired counter for key. Caller holds s.mu.
func (s *MemoryStore) live(key string, now time.Time) *counter {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil
	}
	c := v.(*counter)
	if !now.Before(c.expiresAt) {
		s.cache.Remove(key)
		return nil
	}
	return c
}

// Sweep drops every expired counter and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.cache.Keys() {
		v, ok := s.cache.Peek(k)
		if !ok {
			continue
		}
		if !now.Before(v.(*counter).expiresAt) {
			s.cache.Remove(k)
			n++
		}
	}
	return n
}
