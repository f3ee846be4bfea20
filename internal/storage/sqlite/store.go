// Package sqlite provides a SQLite-backed species store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/migrations"
)

// Store persists species profiles in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite species store and applies embedded migrations.
// ":memory:" opens a private in-process database.
//
// Postcondition: Returns a migrated Store or a non-nil error.
func Open(path string) (*Store, error) {
	sqlDB, err := openDB(path)
	if err != nil {
		return nil, err
	}
	m, err := newMigrator(sqlDB)
	if err == nil {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// NewMigrator opens path and returns a golang-migrate runner for the embedded sqlite
// schema. Closing the migrator closes the database.
func NewMigrator(path string) (*migrate.Migrate, error) {
	sqlDB, err := openDB(path)
	if err != nil {
		return nil, err
	}
	m, err := newMigrator(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

func openDB(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps a :memory: database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return sqlDB, nil
}

func newMigrator(sqlDB *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, migrations.SQLiteDir)
	if err != nil {
		return nil, err
	}
	drv, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", src, "sqlite", drv)
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get loads a profile by name.
//
// Postcondition: returns an error wrapping species.ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, name string) (*species.Profile, error) {
	name = species.NormalizeName(name)
	p := &species.Profile{Name: name}
	var typesJSON, evolutionJSON string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT pokedex_id, types, hp, attack, defense, special_attack, special_defense, speed,
		        sprite_url, evolution
		 FROM species WHERE name = ?`,
		name,
	).Scan(&p.ID, &typesJSON, &p.Stats.HP, &p.Stats.Attack, &p.Stats.Defense,
		&p.Stats.SpecialAttack, &p.Stats.SpecialDefense, &p.Stats.Speed,
		&p.SpriteURL, &evolutionJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("species %q: %w", name, species.ErrNotFound)
		}
		return nil, fmt.Errorf("load species %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(typesJSON), &p.Types); err != nil {
		return nil, fmt.Errorf("decode types for %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(evolutionJSON), &p.Evolution); err != nil {
		return nil, fmt.Errorf("decode evolution for %q: %w", name, err)
	}

	if p.Moves, err = s.moves(ctx, name); err != nil {
		return nil, err
	}
	if p.Abilities, err = s.abilities(ctx, name); err != nil {
		return nil, err
	}
	return p.Normalize(), nil
}

func (s *Store) moves(ctx context.Context, name string) ([]species.Move, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, power, move_type, damage_class FROM species_moves
		 WHERE species_name = ? ORDER BY slot`, name)
	if err != nil {
		return nil, fmt.Errorf("load moves for %q: %w", name, err)
	}
	defer rows.Close()
	var out []species.Move
	for rows.Next() {
		var m species.Move
		var class string
		if err := rows.Scan(&m.Name, &m.Power, &m.Type, &class); err != nil {
			return nil, fmt.Errorf("scan move for %q: %w", name, err)
		}
		m.DamageClass = species.DamageClass(class)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) abilities(ctx context.Context, name string) ([]species.Ability, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, is_hidden FROM species_abilities WHERE species_name = ? ORDER BY slot`, name)
	if err != nil {
		return nil, fmt.Errorf("load abilities for %q: %w", name, err)
	}
	defer rows.Close()
	var out []species.Ability
	for rows.Next() {
		var a species.Ability
		if err := rows.Scan(&a.Name, &a.Hidden); err != nil {
			return nil, fmt.Errorf("scan ability for %q: %w", name, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Put upserts a profile, replacing its moves and abilities.
//
// Precondition: p must be normalized.
func (s *Store) Put(ctx context.Context, p *species.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	typesJSON, err := json.Marshal(nonNil(p.Types))
	if err != nil {
		return fmt.Errorf("encode types: %w", err)
	}
	evolutionJSON, err := json.Marshal(nonNil(p.Evolution))
	if err != nil {
		return fmt.Errorf("encode evolution: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO species (name, pokedex_id, types, hp, attack, defense, special_attack,
		                      special_defense, speed, sprite_url, evolution, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   pokedex_id = excluded.pokedex_id, types = excluded.types, hp = excluded.hp,
		   attack = excluded.attack, defense = excluded.defense,
		   special_attack = excluded.special_attack, special_defense = excluded.special_defense,
		   speed = excluded.speed, sprite_url = excluded.sprite_url,
		   evolution = excluded.evolution, updated_at = excluded.updated_at`,
		p.Name, p.ID, string(typesJSON), p.Stats.HP, p.Stats.Attack, p.Stats.Defense,
		p.Stats.SpecialAttack, p.Stats.SpecialDefense, p.Stats.Speed, p.SpriteURL,
		string(evolutionJSON), time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("upsert species %q: %w", p.Name, err)
	}
	for _, stmt := range []string{
		`DELETE FROM species_moves WHERE species_name = ?`,
		`DELETE FROM species_abilities WHERE species_name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, p.Name); err != nil {
			return fmt.Errorf("clear children of %q: %w", p.Name, err)
		}
	}
	for i, m := range p.Moves {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO species_moves (species_name, slot, name, power, move_type, damage_class)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.Name, i, m.Name, m.Power, m.Type, string(m.DamageClass),
		); err != nil {
			return fmt.Errorf("insert move %q for %q: %w", m.Name, p.Name, err)
		}
	}
	for i, a := range p.Abilities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO species_abilities (species_name, slot, name, is_hidden) VALUES (?, ?, ?, ?)`,
			p.Name, i, a.Name, a.Hidden,
		); err != nil {
			return fmt.Errorf("insert ability %q for %q: %w", a.Name, p.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit species %q: %w", p.Name, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
