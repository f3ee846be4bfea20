// Package postgres persists species profiles in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/pokeduel/internal/config"
)

// ErrSchemaMissing is returned by Ready when the species tables have not been migrated.
var ErrSchemaMissing = errors.New("species schema missing; run the migrate command")

// DefaultReadyTimeout bounds Ready when no timeout is configured.
const DefaultReadyTimeout = 5 * time.Second

// Pool is the connection pool shared by the species repository.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the species database.
//
// Precondition: cfg must pass config.DatabaseConfig validation.
// Postcondition: Returns a pinged Pool or a non-nil error. The schema is not checked; call
// Ready before serving lookups.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// Ready reports whether the database answers within timeout and the species table exists.
// A timeout <= 0 uses DefaultReadyTimeout.
//
// Postcondition: returns ErrSchemaMissing when the database is reachable but unmigrated.
func (p *Pool) Ready(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var table *string
	if err := p.pool.QueryRow(ctx, `SELECT to_regclass('species')::text`).Scan(&table); err != nil {
		return fmt.Errorf("checking species schema: %w", err)
	}
	if table == nil {
		return ErrSchemaMissing
	}
	return nil
}

// Close releases all connections. The pool is unusable afterwards.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the pgx pool the species repository queries.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
