package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   string
	expiresAt time.Time
}

// MemoryTier is the in-process fallback tier. Best effort: bounded by TTL
// only, since it mirrors recently requested keys and stays small.
type MemoryTier struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{items: make(map[string]memoryEntry)}
}

func (m *MemoryTier) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return e.payload, true, nil
}

func (m *MemoryTier) Set(_ context.Context, key, payload string, ttl time.Duration) error {
	m.mu.Lock()
	m.items[key] = memoryEntry{payload: payload, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	m.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were evicted.
func (m *MemoryTier) Sweep() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for k, e := range m.items {
		if now.After(e.expiresAt) {
			delete(m.items, k)
			evicted++
		}
	}
	return evicted
}

func (m *MemoryTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
