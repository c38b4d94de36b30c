// internal/progress/memory.go
//
// In-memory Store implementation. Used in tests and for durability-free
// local development. State is lost when the process exits.
package progress

import (
	"context"
	"sync"
	"time"
)

type memory struct {
	mu   sync.RWMutex
	recs map[string]*Record // keyed by player id, stored as private copies
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore() Store {
	return &memory{recs: make(map[string]*Record)}
}

func (m *memory) Load(ctx context.Context, playerID string) (*Record, error) {
	m.mu.RLock()
	rec, ok := m.recs[playerID]
	m.mu.RUnlock()
	if ok {
		return rec.Clone(), nil
	}

	rec = NewRecord(playerID, time.Now())
	m.mu.Lock()
	// Another Load may have raced us here; keep whichever landed first.
	if existing, ok := m.recs[playerID]; ok {
		rec = existing
	} else {
		m.recs[playerID] = rec
	}
	m.mu.Unlock()
	return rec.Clone(), nil
}

func (m *memory) Save(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec.Clone()
	return nil
}

func (m *memory) Close() error { return nil }
