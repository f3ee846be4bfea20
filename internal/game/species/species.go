// Package species defines the immutable species profiles that combatants are built from.
package species

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNotFound is returned when a species name does not resolve to a profile.
var ErrNotFound = errors.New("species not found")

// MaxMoves is the size of a curated moveset.
const MaxMoves = 4

// DamageClass is the damage category of a move.
type DamageClass string

const (
	Physical DamageClass = "physical"
	Special  DamageClass = "special"
	Status   DamageClass = "status"
)

// Damaging reports whether moves of this class deal direct damage.
func (d DamageClass) Damaging() bool {
	return d == Physical || d == Special
}

// Move is a single action a species can take.
type Move struct {
	Name        string      `json:"name" yaml:"name"`
	Power       int         `json:"power" yaml:"power"`
	Type        string      `json:"move_type" yaml:"type"`
	DamageClass DamageClass `json:"damage_class" yaml:"damage_class"`
}

// Eligible reports whether the move may appear in a curated moveset.
func (m Move) Eligible() bool {
	return m.Power > 0 && m.DamageClass.Damaging()
}

// Stats holds the six base statistics.
type Stats struct {
	HP             int `json:"hp" yaml:"hp"`
	Attack         int `json:"attack" yaml:"attack"`
	Defense        int `json:"defense" yaml:"defense"`
	SpecialAttack  int `json:"special_attack" yaml:"special_attack"`
	SpecialDefense int `json:"special_defense" yaml:"special_defense"`
	Speed          int `json:"speed" yaml:"speed"`
}

// withDefaults replaces every non-positive stat with 1.
func (s Stats) withDefaults() Stats {
	fix := func(v int) int {
		if v <= 0 {
			return 1
		}
		return v
	}
	return Stats{
		HP:             fix(s.HP),
		Attack:         fix(s.Attack),
		Defense:        fix(s.Defense),
		SpecialAttack:  fix(s.SpecialAttack),
		SpecialDefense: fix(s.SpecialDefense),
		Speed:          fix(s.Speed),
	}
}

// Ability is a passive trait. Abilities are informational and do not affect battles.
type Ability struct {
	Name   string `json:"name" yaml:"name"`
	Hidden bool   `json:"is_hidden" yaml:"hidden"`
}

// Profile is a species as it enters a battle.
//
// Invariant (after Normalize): Name is lowercase, Types has 1-2 entries, every stat is >= 1,
// and Moves holds at most MaxMoves eligible moves.
type Profile struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Types     []string  `json:"types"`
	Stats     Stats     `json:"base_stats"`
	Moves     []Move    `json:"moves"`
	Abilities []Ability `json:"abilities,omitempty"`
	SpriteURL string    `json:"sprite_url,omitempty"`
	Evolution []string  `json:"evolution,omitempty"`
}

// Normalize returns a copy of p with lowercase names, defaulted stats, and a moveset
// filtered to eligible moves. Moves are kept in their given order and truncated to MaxMoves.
//
// Precondition: p must be non-nil.
// Postcondition: the returned profile satisfies the Profile invariants except the type count,
// which Validate checks.
func (p *Profile) Normalize() *Profile {
	out := &Profile{
		ID:        p.ID,
		Name:      strings.ToLower(strings.TrimSpace(p.Name)),
		Stats:     p.Stats.withDefaults(),
		SpriteURL: p.SpriteURL,
	}
	for _, t := range p.Types {
		out.Types = append(out.Types, strings.ToLower(strings.TrimSpace(t)))
	}
	for _, m := range p.Moves {
		if !m.Eligible() {
			continue
		}
		m.Name = strings.ToLower(strings.TrimSpace(m.Name))
		m.Type = strings.ToLower(strings.TrimSpace(m.Type))
		out.Moves = append(out.Moves, m)
		if len(out.Moves) == MaxMoves {
			break
		}
	}
	out.Abilities = append(out.Abilities, p.Abilities...)
	out.Evolution = append(out.Evolution, p.Evolution...)
	return out
}

// Validate reports a structural problem with the profile.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("species: name must not be empty")
	}
	if len(p.Types) < 1 || len(p.Types) > 2 {
		return errors.New("species: " + p.Name + " must have one or two types")
	}
	return nil
}

// DisplayName returns the profile name in title case.
func (p *Profile) DisplayName() string {
	return DisplayName(p.Name)
}

// HasType reports whether the species has type t.
func (p *Profile) HasType(t string) bool {
	for _, own := range p.Types {
		if own == t {
			return true
		}
	}
	return false
}

// DisplayName converts a hyphenated identifier such as "thunder-punch" into "Thunder Punch".
func DisplayName(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
}

// NormalizeName lowercases and trims a lookup name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
