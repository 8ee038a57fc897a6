package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryKV is an in-process TTL KV backend for development and tests.
// Expired entries are swept lazily on access.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

var _ KV = &MemoryKV{}

// NewMemoryKV creates an empty in-memory TTL store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil {
		return nil, ErrSessionNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = &memoryEntry{
		value:     stored,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live(key) == nil {
		return ErrSessionNotFound
	}
	delete(m.entries, key)
	return nil
}

func (m *MemoryKV) Touch(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil {
		return ErrSessionNotFound
	}
	entry.expiresAt = m.now().Add(ttl)
	return nil
}

// live returns the entry if present and unexpired, deleting it when expired.
// Caller must hold the lock.
func (m *MemoryKV) live(key string) *memoryEntry {
	entry, exists := m.entries[key]
	if !exists {
		return nil
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil
	}
	return entry
}
