// Package dex resolves species names to battle-ready profiles.
//
// Lookups go through a persistent Store first. A miss falls back to the
// bundled species registry and then to a remote Fetcher; the result is
// persisted before it is returned.
package dex

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
)

//go:generate mockgen -destination=mock/mock_dex.go -package=dexmock github.com/cory-johannsen/pokeduel/internal/dex Store,Fetcher

// Store persists resolved profiles.
type Store interface {
	// Get returns the stored profile, or an error wrapping species.ErrNotFound.
	Get(ctx context.Context, name string) (*species.Profile, error)
	// Put stores p under p.Name, replacing any previous entry.
	Put(ctx context.Context, p *species.Profile) error
}

// Fetcher retrieves a profile from a remote source.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (*species.Profile, error)
}

// Dex is a cache-through species lookup. Concurrent lookups of the same name
// share one resolution.
type Dex struct {
	store  Store
	local  *species.Registry
	remote Fetcher
	logger *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	memo  map[string]*species.Profile
}

// New creates a Dex.
//
// Precondition: store and logger must be non-nil. local and remote may be nil.
func New(store Store, local *species.Registry, remote Fetcher, logger *zap.Logger) *Dex {
	return &Dex{
		store:  store,
		local:  local,
		remote: remote,
		logger: logger,
		memo:   make(map[string]*species.Profile),
	}
}

// Lookup resolves name.
//
// Postcondition: returns a normalized, valid profile, or an error wrapping
// species.ErrNotFound when no source knows the name. The returned profile is
// shared and must not be modified.
func (d *Dex) Lookup(ctx context.Context, name string) (*species.Profile, error) {
	key := species.NormalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("dex: empty name: %w", species.ErrNotFound)
	}

	d.mu.RLock()
	p, ok := d.memo[key]
	d.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, shared := d.group.Do(key, func() (any, error) {
		return d.resolve(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	p = v.(*species.Profile)
	if shared {
		d.logger.Debug("dex: shared lookup", zap.String("name", key))
	}

	d.mu.Lock()
	d.memo[key] = p
	d.mu.Unlock()
	return p, nil
}

func (d *Dex) resolve(ctx context.Context, key string) (*species.Profile, error) {
	p, err := d.store.Get(ctx, key)
	if err == nil {
		d.logger.Debug("dex: store hit", zap.String("name", key))
		return p, nil
	}
	if !errors.Is(err, species.ErrNotFound) {
		return nil, fmt.Errorf("dex: reading store for %q: %w", key, err)
	}

	p, source, err := d.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	d.logger.Info("dex: store miss, resolved",
		zap.String("name", key),
		zap.String("source", source),
	)
	if err := d.store.Put(ctx, p); err != nil {
		d.logger.Warn("dex: persisting profile", zap.String("name", key), zap.Error(err))
	}
	return p, nil
}

func (d *Dex) fetch(ctx context.Context, key string) (*species.Profile, string, error) {
	if d.local != nil {
		if p, ok := d.local.Get(key); ok {
			return p, "local", nil
		}
	}
	if d.remote == nil {
		return nil, "", fmt.Errorf("dex: %q: %w", key, species.ErrNotFound)
	}
	p, err := d.remote.Fetch(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return p, "remote", nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*species.Profile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*species.Profile)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, name string) (*species.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[species.NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("memory store: %q: %w", name, species.ErrNotFound)
	}
	return p, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, p *species.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Name] = p
	return nil
}
