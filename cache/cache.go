// Package cache keeps the last value produced for each signal query together with
// the time it was produced, so pipelines can skip source calls while it is fresh.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

var (
	ErrMiss         = errors.New("cache miss")
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// staleRetention is how many TTLs a backend keeps an entry around after it expires.
const staleRetention = 7

// Backend stores encoded entries. Load returns ErrMiss when the key is absent.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, data []byte, retention time.Duration) error
}

type Entry[T any] struct {
	CreatedAt time.Time `json:"timestamp"`
	Value     T         `json:"data"`
}

// IsValid reports whether an entry created at createdAt is still fresh at now.
func IsValid(createdAt time.Time, ttl time.Duration, now time.Time) bool {
	if createdAt.IsZero() {
		return false
	}
	return now.Sub(createdAt) < ttl
}

type Cache[T any] struct {
	backend   Backend
	partition string
	ttl       time.Duration
	now       func() time.Time
}

func New[T any](backend Backend, partition string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		backend:   backend,
		partition: partition,
		ttl:       ttl,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for stamping and validity checks.
func (c *Cache[T]) WithClock(now func() time.Time) *Cache[T] {
	c.now = now
	return c
}

func (c *Cache[T]) TTL() time.Duration { return c.ttl }

func (c *Cache[T]) Partition() string { return c.partition }

// Get returns the cached value and its age when a fresh entry exists.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, time.Duration, bool) {
	var zero T
	entry, ok := c.load(ctx, key)
	if !ok {
		return zero, 0, false
	}
	now := c.now()
	if !IsValid(entry.CreatedAt, c.ttl, now) {
		return zero, 0, false
	}
	return entry.Value, now.Sub(entry.CreatedAt), true
}

// GetStale returns the last entry written for key regardless of its age.
func (c *Cache[T]) GetStale(ctx context.Context, key string) (Entry[T], bool) {
	return c.load(ctx, key)
}

// Put replaces the entry for key with value stamped at the cache clock's now.
func (c *Cache[T]) Put(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(Entry[T]{CreatedAt: c.now().UTC(), Value: value})
	if err != nil {
		return fmt.Errorf("encode %s entry %q: %w", c.partition, key, err)
	}
	if err := c.backend.Store(ctx, c.fullKey(key), data, c.ttl*staleRetention); err != nil {
		return fmt.Errorf("store %s entry %q: %w", c.partition, key, err)
	}
	return nil
}

func (c *Cache[T]) load(ctx context.Context, key string) (Entry[T], bool) {
	var entry Entry[T]
	data, err := c.backend.Load(ctx, c.fullKey(key))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Printf("cache %s read failed for key=%s: %v", c.partition, key, err)
		}
		return entry, false
	}
	if err := decode(data, &entry); err != nil {
		log.Printf("cache %s key=%s: %v", c.partition, key, err)
		return Entry[T]{}, false
	}
	return entry, true
}

func (c *Cache[T]) fullKey(key string) string {
	return c.partition + ":" + key
}

func decode[T any](data []byte, entry *Entry[T]) error {
	if err := json.Unmarshal(data, entry); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if entry.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrCorruptEntry)
	}
	return nil
}
