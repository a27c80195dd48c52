package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with TTL support.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

// NewMemoryStore returns an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock returns an empty store that reads time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry), now: now}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("get", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return unavailable("set", err)
	}
	e := memoryEntry{value: append([]byte{}, value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("del", err)
	}
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *MemoryStore) Generation(ctx context.Context, counter string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("get generation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generationLocked(counter), nil
}

func (s *MemoryStore) Bump(ctx context.Context, counters []string, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("bump", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range counters {
		next := s.generationLocked(c) + 1
		s.data[c] = memoryEntry{value: []byte(strconv.FormatInt(next, 10))}
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *MemoryStore) SetIfGeneration(ctx context.Context, counter string, gen int64, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("set if generation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generationLocked(counter) != gen {
		return false, nil
	}
	e := memoryEntry{value: append([]byte{}, value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = e
	return true, nil
}

// generationLocked reads a counter; unparsable or expired values count as 0.
func (s *MemoryStore) generationLocked(counter string) int64 {
	e, ok := s.data[counter]
	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return 0
	}
	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Len reports the number of stored keys, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
