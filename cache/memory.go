package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBackend keeps encoded entries in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]memoryItem), now: time.Now}
}

func (m *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	now := m.now()
	if item.expired(now) {
		m.evict(key, now)
		return nil, ErrMiss
	}
	out := make([]byte, len(item.data))
	copy(out, item.data)
	return out, nil
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// evict removes key only if the entry held now is still expired; a Store that
// raced in after the read lock was released survives.
func (m *MemoryBackend) evict(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.items[key]; ok && cur.expired(now) {
		delete(m.items, key)
	}
}

func (m *MemoryBackend) Store(_ context.Context, key string, data []byte, retention time.Duration) error {
	item := memoryItem{data: make([]byte, len(data))}
	copy(item.data, data)
	if retention > 0 {
		item.expiresAt = m.now().Add(retention)
	}
	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
