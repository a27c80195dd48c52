// Package kv is the key-value client shared by the session store and the
// course catalog cache.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound reports an absent key. An empty value is a value, not absence.
	ErrNotFound = errors.New("kv: not found")
	// ErrUnavailable wraps transport and server failures.
	ErrUnavailable = errors.New("kv: unavailable")
)

// Store is the subset of key-value operations the service relies on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value under key. A zero ttl keeps the key until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error

	// Generation returns the counter stored at counter, 0 when absent.
	Generation(ctx context.Context, counter string) (int64, error)
	// Bump increments every counter and deletes keys in one atomic step.
	Bump(ctx context.Context, counters []string, keys ...string) error
	// SetIfGeneration writes value under key only while counter still holds
	// gen. It reports whether the value was written.
	SetIfGeneration(ctx context.Context, counter string, gen int64, key string, value []byte, ttl time.Duration) (bool, error)
}
