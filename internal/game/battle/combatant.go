// Package battle implements the turn-based battle resolution engine and its move-selection
// strategies.
package battle

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
)

// ErrInvariantViolation marks a programming-error fault inside the engine. The engine panics
// with an error wrapping it; callers are not expected to recover.
var ErrInvariantViolation = errors.New("battle invariant violation")

// Status is the single persistent affliction a combatant may carry.
type Status int

const (
	StatusNone Status = iota
	StatusParalyzed
	StatusPoisoned
	StatusBurned
)

// String returns the adjective form, e.g. "paralyzed".
func (s Status) String() string {
	switch s {
	case StatusParalyzed:
		return "paralyzed"
	case StatusPoisoned:
		return "poisoned"
	case StatusBurned:
		return "burned"
	default:
		return "none"
	}
}

// noun returns the condition name used in narration, e.g. "paralysis".
func (s Status) noun() string {
	switch s {
	case StatusParalyzed:
		return "paralysis"
	case StatusPoisoned:
		return "poison"
	case StatusBurned:
		return "a burn"
	default:
		return "nothing"
	}
}

// DamagesOverTime reports whether the status deals end-of-turn damage.
func (s Status) DamagesOverTime() bool {
	return s == StatusPoisoned || s == StatusBurned
}

// Combatant is the mutable per-battle state wrapped around an immutable species profile.
//
// Invariant: 0 <= HP <= MaxHP and 0 <= AP <= the rules' MaxAP.
type Combatant struct {
	Profile *species.Profile
	HP      int
	MaxHP   int
	AP      int
	Status  Status

	gated bool
}

// NewCombatant creates a combatant at full health with the starting AP from rules.
//
// Precondition: p must be normalized (every stat >= 1).
// Postcondition: HP == MaxHP == p.Stats.HP.
func NewCombatant(p *species.Profile, rules Rules) *Combatant {
	c := &Combatant{
		Profile: p,
		HP:      p.Stats.HP,
		MaxHP:   p.Stats.HP,
		gated:   rules.ResourceGated,
	}
	if rules.ResourceGated {
		c.AP = rules.StartAP
	}
	return c
}

// Name returns the display name of the species.
func (c *Combatant) Name() string { return c.Profile.DisplayName() }

// Alive reports whether the combatant can still act.
func (c *Combatant) Alive() bool { return c.HP > 0 }

// ApplyDamage reduces HP by amount, flooring at zero.
//
// Precondition: amount must be >= 0.
// Postcondition: HP >= 0.
func (c *Combatant) ApplyDamage(amount int) {
	if amount < 0 {
		panic(fmt.Errorf("%w: negative damage %d", ErrInvariantViolation, amount))
	}
	c.HP -= amount
	if c.HP < 0 {
		c.HP = 0
	}
}

// Regenerate restores amount AP, capped at limit.
//
// Postcondition: AP <= limit.
func (c *Combatant) Regenerate(amount, limit int) {
	c.AP += amount
	if c.AP > limit {
		c.AP = limit
	}
}

// Spend debits cost AP.
//
// Precondition: 0 <= cost <= AP. Panics with ErrInvariantViolation otherwise.
func (c *Combatant) Spend(cost int) {
	if cost < 0 || cost > c.AP {
		panic(fmt.Errorf("%w: %s cannot spend %d AP with %d", ErrInvariantViolation, c.Name(), cost, c.AP))
	}
	c.AP -= cost
}

// Affordable reports whether m may be used right now.
func (c *Combatant) Affordable(m species.Move) bool {
	return !c.gated || m.Power <= c.AP
}

// Eligible returns the curated moves this combatant may use right now: every move when AP
// does not apply, otherwise only those whose power fits the current AP.
func (c *Combatant) Eligible() []species.Move {
	out := make([]species.Move, 0, len(c.Profile.Moves))
	for _, m := range c.Profile.Moves {
		if c.Affordable(m) {
			out = append(out, m)
		}
	}
	return out
}

// HealthFraction compares remaining health fractions exactly.
// It returns >0 when c has the larger fraction, <0 when other does, and 0 on a tie.
func (c *Combatant) HealthFraction(other *Combatant) int {
	return c.HP*other.MaxHP - other.HP*c.MaxHP
}
