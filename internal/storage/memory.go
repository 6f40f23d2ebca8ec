package storage

import (
	"context"
	"sync"
	"time"

	"github.com/railzwaylabs/paybridge/internal/clock"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory keeps entries in process. Entries with a TTL expire lazily on read.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	ttl   time.Duration
	clock clock.Clock
}

func NewMemory(ttl time.Duration, c clock.Clock) *Memory {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Memory{items: make(map[string]memoryEntry), ttl: ttl, clock: c}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !m.clock.Now(ctx).Before(entry.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	var expiresAt time.Time
	if m.ttl > 0 {
		expiresAt = m.clock.Now(ctx).Add(m.ttl)
	}
	m.mu.Lock()
	m.items[key] = memoryEntry{value: value, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ContainsKey(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.items = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}
