// Package storage defines the battle archive shared by the server and its
// backing stores.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRecordNotFound is returned when no battle record has the requested id.
var ErrRecordNotFound = errors.New("battle record not found")

// Record is a finished battle as archived for replay.
type Record struct {
	ID            string    `json:"id"`
	Pokemon1      string    `json:"pokemon1"`
	Pokemon2      string    `json:"pokemon2"`
	Strategy      string    `json:"strategy"`
	Seed          uint64    `json:"seed"`
	Winner        string    `json:"winner"`
	Draw          bool      `json:"draw"`
	Turns         int       `json:"turns"`
	BattleLog     []string  `json:"battle_log"`
	CommentaryLog []string  `json:"commentary_log,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Archive stores finished battles.
type Archive interface {
	// Save stores rec under rec.ID.
	Save(ctx context.Context, rec Record) error
	// Get returns the record, or ErrRecordNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// Recent returns up to limit record ids, newest first.
	Recent(ctx context.Context, limit int) ([]string, error)
}

// MemoryArchive keeps records in process. Records do not expire.
type MemoryArchive struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

// NewMemoryArchive creates an empty MemoryArchive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{records: make(map[string]Record)}
}

// Save implements Archive.
func (m *MemoryArchive) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; !ok {
		m.order = append(m.order, rec.ID)
	}
	m.records[rec.ID] = rec
	return nil
}

// Get implements Archive.
func (m *MemoryArchive) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

// Recent implements Archive.
func (m *MemoryArchive) Recent(_ context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, min(limit, len(m.order)))
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.order[i])
	}
	return out, nil
}
