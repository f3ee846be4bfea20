package battle_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/game/battle"
	"github.com/cory-johannsen/pokeduel/internal/game/dice"
	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/game/typechart"
)

// seqSrc returns queued values in order, clamped into range, then n-1 once exhausted.
// It is only used from a single goroutine.
type seqSrc struct {
	vals     []int
	fallback dice.Source
}

func (s *seqSrc) Intn(n int) int {
	if len(s.vals) == 0 {
		if s.fallback != nil {
			return s.fallback.Intn(n)
		}
		return n - 1
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	if v >= n {
		return n - 1
	}
	return v
}

func roller(vals ...int) *dice.Roller {
	return dice.NewLoggedRoller(&seqSrc{vals: vals}, zap.NewNop())
}

func physical(name, typ string, power int) species.Move {
	return species.Move{Name: name, Power: power, Type: typ, DamageClass: species.Physical}
}

func special(name, typ string, power int) species.Move {
	return species.Move{Name: name, Power: power, Type: typ, DamageClass: species.Special}
}

func profile(name string, types []string, hp, atk, def, speed int, moves ...species.Move) *species.Profile {
	return (&species.Profile{
		Name:  name,
		Types: types,
		Stats: species.Stats{HP: hp, Attack: atk, Defense: def, SpecialAttack: atk, SpecialDefense: def, Speed: speed},
		Moves: moves,
	}).Normalize()
}

// normalMon and ghostMon cannot damage each other: normal and ghost are mutually immune.
func normalMon(hp int) *species.Profile {
	return profile("alpha", []string{"normal"}, hp, 50, 50, 50, physical("tackle", "normal", 40))
}

func ghostMon(hp int) *species.Profile {
	return profile("ghosty", []string{"ghost"}, hp, 50, 50, 40, special("lick", "ghost", 30))
}

func heuristicEngine(rules battle.Rules, r *dice.Roller) *battle.Engine {
	chart := typechart.Default()
	return battle.NewEngine(rules, battle.NewHeuristic(chart, r), chart, r, zap.NewNop())
}

// advisorFunc adapts a function to battle.Advisor.
type advisorFunc func(ctx context.Context, req battle.AdviceRequest) (battle.Advice, error)

func (f advisorFunc) Advise(ctx context.Context, req battle.AdviceRequest) (battle.Advice, error) {
	return f(ctx, req)
}

var errAdvisorDown = errors.New("advisor down")

func failingAdvisor() battle.Advisor {
	return advisorFunc(func(context.Context, battle.AdviceRequest) (battle.Advice, error) {
		return battle.Advice{}, errAdvisorDown
	})
}

// requireInvariantPanic asserts fn panics with an error wrapping ErrInvariantViolation.
func requireInvariantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, battle.ErrInvariantViolation) {
			t.Fatalf("expected ErrInvariantViolation panic, got %v", r)
		}
	}()
	fn()
}
