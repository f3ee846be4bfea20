package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
)

// SpeciesRepository persists species profiles.
type SpeciesRepository struct {
	db *pgxpool.Pool
}

// NewSpeciesRepository creates a SpeciesRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with the species schema applied.
func NewSpeciesRepository(db *pgxpool.Pool) *SpeciesRepository {
	return &SpeciesRepository{db: db}
}

// Get loads a profile by name.
//
// Postcondition: Returns the profile with moves and abilities in slot order,
// or an error wrapping species.ErrNotFound.
func (r *SpeciesRepository) Get(ctx context.Context, name string) (*species.Profile, error) {
	name = species.NormalizeName(name)
	p := &species.Profile{Name: name}
	err := r.db.QueryRow(ctx,
		`SELECT pokedex_id, types, hp, attack, defense, special_attack, special_defense, speed,
		        sprite_url, evolution
		 FROM species WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Types, &p.Stats.HP, &p.Stats.Attack, &p.Stats.Defense,
		&p.Stats.SpecialAttack, &p.Stats.SpecialDefense, &p.Stats.Speed,
		&p.SpriteURL, &p.Evolution)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("species %q: %w", name, species.ErrNotFound)
		}
		return nil, fmt.Errorf("loading species %q: %w", name, err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT name, power, move_type, damage_class FROM species_moves
		 WHERE species_name = $1 ORDER BY slot`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("loading moves for %q: %w", name, err)
	}
	p.Moves, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (species.Move, error) {
		var m species.Move
		var class string
		err := row.Scan(&m.Name, &m.Power, &m.Type, &class)
		m.DamageClass = species.DamageClass(class)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning moves for %q: %w", name, err)
	}

	rows, err = r.db.Query(ctx,
		`SELECT name, is_hidden FROM species_abilities
		 WHERE species_name = $1 ORDER BY slot`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("loading abilities for %q: %w", name, err)
	}
	p.Abilities, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (species.Ability, error) {
		var a species.Ability
		err := row.Scan(&a.Name, &a.Hidden)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning abilities for %q: %w", name, err)
	}
	return p.Normalize(), nil
}

// Put upserts a profile, replacing its moves and abilities.
//
// Precondition: p must be normalized.
// Postcondition: a later Get(p.Name) returns an equal profile.
func (r *SpeciesRepository) Put(ctx context.Context, p *species.Profile) error {
	types := p.Types
	if types == nil {
		types = []string{}
	}
	evolution := p.Evolution
	if evolution == nil {
		evolution = []string{}
	}
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO species (name, pokedex_id, types, hp, attack, defense, special_attack,
			                      special_defense, speed, sprite_url, evolution, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			 ON CONFLICT (name) DO UPDATE SET
			   pokedex_id = EXCLUDED.pokedex_id, types = EXCLUDED.types, hp = EXCLUDED.hp,
			   attack = EXCLUDED.attack, defense = EXCLUDED.defense,
			   special_attack = EXCLUDED.special_attack, special_defense = EXCLUDED.special_defense,
			   speed = EXCLUDED.speed, sprite_url = EXCLUDED.sprite_url,
			   evolution = EXCLUDED.evolution, updated_at = NOW()`,
			p.Name, p.ID, types, p.Stats.HP, p.Stats.Attack, p.Stats.Defense,
			p.Stats.SpecialAttack, p.Stats.SpecialDefense, p.Stats.Speed, p.SpriteURL, evolution,
		); err != nil {
			return fmt.Errorf("upserting species: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM species_moves WHERE species_name = $1`, p.Name); err != nil {
			return fmt.Errorf("clearing moves: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM species_abilities WHERE species_name = $1`, p.Name); err != nil {
			return fmt.Errorf("clearing abilities: %w", err)
		}

		batch := &pgx.Batch{}
		for i, m := range p.Moves {
			batch.Queue(
				`INSERT INTO species_moves (species_name, slot, name, power, move_type, damage_class)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				p.Name, i, m.Name, m.Power, m.Type, string(m.DamageClass),
			)
		}
		for i, a := range p.Abilities {
			batch.Queue(
				`INSERT INTO species_abilities (species_name, slot, name, is_hidden) VALUES ($1, $2, $3, $4)`,
				p.Name, i, a.Name, a.Hidden,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting moves and abilities: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing species %q: %w", p.Name, err)
	}
	return nil
}
