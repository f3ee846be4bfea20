package battle

import (
	"math"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/game/typechart"
)

// Hit is the result of one damage calculation.
type Hit struct {
	Damage        int
	Effectiveness float64
}

// ComputeDamage applies the fixed battle damage formula:
//
//	raw    = (((2/5 + 2) * power * A / D) / 50) + 2
//	damage = floor(raw * effectiveness)
//
// A and D are attack and defense for physical moves, special attack and special defense
// for special moves. Truncation happens only at the final step.
//
// Postcondition: Damage >= 0; non-damaging classes return Hit{0, 1}; zero effectiveness
// returns zero damage.
func ComputeDamage(m species.Move, attacker, defender *species.Profile, chart *typechart.Chart) Hit {
	if !m.DamageClass.Damaging() {
		return Hit{Damage: 0, Effectiveness: 1}
	}
	eff := chart.Multiplier(m.Type, defender.Types)

	a, d := attacker.Stats.Attack, defender.Stats.Defense
	if m.DamageClass == species.Special {
		a, d = attacker.Stats.SpecialAttack, defender.Stats.SpecialDefense
	}
	a, d = max(a, 1), max(d, 1)

	raw := (((2.0/5.0+2)*float64(m.Power)*float64(a)/float64(d))/50 + 2)
	return Hit{Damage: int(math.Floor(raw * eff)), Effectiveness: eff}
}
