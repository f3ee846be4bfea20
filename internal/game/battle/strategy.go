package battle

import (
	"context"

	"github.com/cory-johannsen/pokeduel/internal/game/dice"
	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/game/typechart"
)

// Decision is a strategy's choice for one action.
// A nil Move means the attacker does nothing this turn.
type Decision struct {
	Move       *species.Move
	Rationale  string
	Commentary string
}

// Narrator is implemented by strategies that explain every decision. The engine records
// one rationale line and one commentary line for each decision such a strategy makes.
type Narrator interface {
	Narrates() bool
}

// Strategy selects the damaging move an attacker uses on a turn.
//
// Implementations only ever return a move taken from attacker.Eligible().
type Strategy interface {
	// Name identifies the strategy, e.g. "heuristic".
	Name() string
	// Choose selects a move for attacker against defender on the given turn.
	Choose(ctx context.Context, attacker, defender *Combatant, turn int) Decision
}

// nearBestFraction is the share of the best score a move needs to be considered.
const nearBestFraction = 0.8

// Heuristic scores every eligible move as power times effectiveness and picks uniformly
// among the moves within nearBestFraction of the best score.
type Heuristic struct {
	chart  *typechart.Chart
	roller *dice.Roller
}

// NewHeuristic creates a Heuristic strategy.
//
// Precondition: chart and roller must be non-nil.
func NewHeuristic(chart *typechart.Chart, roller *dice.Roller) *Heuristic {
	return &Heuristic{chart: chart, roller: roller}
}

// Name returns "heuristic".
func (h *Heuristic) Name() string { return "heuristic" }

// Choose implements Strategy.
//
// Postcondition: Returns a nil Move only if attacker has no eligible moves. When every
// score is zero the choice is uniform over all eligible moves.
func (h *Heuristic) Choose(_ context.Context, attacker, defender *Combatant, _ int) Decision {
	moves := attacker.Eligible()
	if len(moves) == 0 {
		return Decision{}
	}

	scores := make([]float64, len(moves))
	best := 0.0
	for i, m := range moves {
		scores[i] = float64(m.Power) * h.chart.Multiplier(m.Type, defender.Profile.Types)
		if scores[i] > best {
			best = scores[i]
		}
	}

	candidates := moves
	if best > 0 {
		candidates = make([]species.Move, 0, len(moves))
		for i, m := range moves {
			if scores[i] >= nearBestFraction*best {
				candidates = append(candidates, m)
			}
		}
	}
	pick := candidates[h.roller.Pick("heuristic move", len(candidates)).Value]
	return Decision{Move: &pick}
}
