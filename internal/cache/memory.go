package cache

import (
	"sync"
	"time"

	"github.com/LegalDragon/funtime-identity/internal/clock"
	"github.com/LegalDragon/funtime-identity/internal/domain"
)

type entry struct {
	value     *domain.ApiKey
	expiresAt time.Time
}

// Memory is a mutex-guarded TTL map. Expired entries are dropped lazily on
// Get and swept opportunistically on Set once the map grows past sweepAt.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   clock.Clock
	sweepAt int
}

func NewMemory(clk clock.Clock) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		clock:   clk,
		sweepAt: 4096,
	}
}

func (m *Memory) Get(key string) (*domain.ApiKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.clock.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(key string, value *domain.ApiKey, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if len(m.entries) >= m.sweepAt {
		for k, e := range m.entries {
			if !now.Before(e.expiresAt) {
				delete(m.entries, k)
			}
		}
	}
	m.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}
}

func (m *Memory) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}
