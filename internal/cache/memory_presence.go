package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryPresence каталог присутствия в памяти процесса
type MemoryPresence struct {
	mu      sync.RWMutex
	entries map[string]Presence
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryPresence создаёт каталог. ttl = 0 отключает устаревание.
func NewMemoryPresence(ttl time.Duration) *MemoryPresence {
	return &MemoryPresence{
		entries: make(map[string]Presence),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryPresence) Put(ctx context.Context, p Presence) error {
	p.UpdatedAt = m.now()
	m.mu.Lock()
	if old, ok := m.entries[p.ID]; ok && p.JoinedAt.IsZero() {
		p.JoinedAt = old.JoinedAt
	}
	m.entries[p.ID] = p
	m.mu.Unlock()
	return nil
}

func (m *MemoryPresence) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MemoryPresence) List(ctx context.Context) ([]Presence, error) {
	now := m.now()
	m.mu.RLock()
	out := make([]Presence, 0, len(m.entries))
	for _, p := range m.entries {
		if m.ttl > 0 && now.Sub(p.UpdatedAt) > m.ttl {
			continue
		}
		out = append(out, p)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (m *MemoryPresence) Close() error { return nil }
