// Package redis stores battle records in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/pokeduel/internal/storage"
)

const (
	// Key pattern: battle:{id}
	recordKeyPrefix = "battle:"
	recentKey       = "battles:recent"
	recentLimit     = 100
	defaultTTL      = 24 * time.Hour
)

// NewClient creates a go-redis client for a single instance.
//
// Postcondition: the client connects lazily; returns an error for an empty addr.
func NewClient(addr string) (goredis.UniversalClient, error) {
	if addr == "" {
		return nil, errors.New("redis: addr is required")
	}
	return goredis.NewClient(&goredis.Options{Addr: addr}), nil
}

// Config holds the archive's dependencies.
type Config struct {
	Client goredis.UniversalClient
	// TTL bounds how long each record is kept. Zero uses 24h.
	TTL time.Duration
}

// Validate ensures all required dependencies are provided.
func (c *Config) Validate() error {
	if c.Client == nil {
		return errors.New("redis client is required")
	}
	if c.TTL < 0 {
		return errors.New("ttl must not be negative")
	}
	return nil
}

// Archive is a storage.Archive backed by Redis.
type Archive struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

var _ storage.Archive = (*Archive)(nil)

// NewArchive creates an Archive.
func NewArchive(cfg *Config) (*Archive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &Archive{client: cfg.Client, ttl: ttl}, nil
}

// Save stores rec with the archive TTL and records its id in the recent list.
func (a *Archive) Save(ctx context.Context, rec storage.Record) error {
	if rec.ID == "" {
		return errors.New("record id cannot be empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling battle record: %w", err)
	}
	_, err = a.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, recordKeyPrefix+rec.ID, data, a.ttl)
		pipe.LPush(ctx, recentKey, rec.ID)
		pipe.LTrim(ctx, recentKey, 0, recentLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing battle record %s: %w", rec.ID, err)
	}
	return nil
}

// Get loads a record.
//
// Postcondition: returns storage.ErrRecordNotFound for unknown or expired ids.
func (a *Archive) Get(ctx context.Context, id string) (storage.Record, error) {
	data, err := a.client.Get(ctx, recordKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return storage.Record{}, fmt.Errorf("battle %s: %w", id, storage.ErrRecordNotFound)
		}
		return storage.Record{}, fmt.Errorf("loading battle record %s: %w", id, err)
	}
	var rec storage.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return storage.Record{}, fmt.Errorf("unmarshalling battle record %s: %w", id, err)
	}
	return rec, nil
}

// Recent returns up to limit ids, newest first. Ids whose records have
// expired may still appear.
func (a *Archive) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := a.client.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing recent battles: %w", err)
	}
	return ids, nil
}
