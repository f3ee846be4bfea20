package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/pokeduel/internal/game/dice"
)

// fixedSrc always returns val, clamped into range.
type fixedSrc struct{ val int }

func (f fixedSrc) Intn(n int) int {
	if f.val >= n {
		return n - 1
	}
	return f.val
}

// TestRoll_String verifies the audit string format.
func TestRoll_String(t *testing.T) {
	r := dice.Roll{Label: "paralysis", Sides: 100, Value: 17}
	assert.Equal(t, "paralysis d100 → 17", r.String())
}

// TestRoll_String_PanicsOnEmptyLabel verifies that String() enforces its precondition.
func TestRoll_String_PanicsOnEmptyLabel(t *testing.T) {
	assert.Panics(t, func() { _ = dice.Roll{Sides: 2}.String() })
}

// TestCryptoSource_Intn_InRange verifies the postcondition:
// every value returned by Intn(6) is in [0, 6).
func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

// TestCryptoSource_Intn_PanicsOnZero verifies the precondition:
// Intn panics when called with n <= 0.
func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

func TestSeededSource_SameSeedSameSequence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64Range(0, dice.MaxSeed).Draw(rt, "seed")
		a, b := dice.NewSeededSource(seed), dice.NewSeededSource(seed)
		for i := 0; i < 32; i++ {
			n := rapid.IntRange(1, 1000).Draw(rt, "n")
			va, vb := a.Intn(n), b.Intn(n)
			assert.Equal(rt, va, vb)
			assert.GreaterOrEqual(rt, va, 0)
			assert.Less(rt, va, n)
		}
	})
}

func TestSeededSource_PanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewSeededSource(1).Intn(0) })
}

func TestNewSeed_Bounded(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.LessOrEqual(t, dice.NewSeed(), uint64(dice.MaxSeed))
	}
}

func TestRoller_Chance(t *testing.T) {
	low := dice.NewLoggedRoller(fixedSrc{val: 24}, zap.NewNop())
	high := dice.NewLoggedRoller(fixedSrc{val: 25}, zap.NewNop())
	assert.True(t, low.Chance("paralysis", 25))
	assert.False(t, high.Chance("paralysis", 25))
	assert.False(t, low.Chance("never", 0))
	assert.True(t, high.Chance("always", 100))
}

func TestRoller_Pick(t *testing.T) {
	r := dice.NewLoggedRoller(fixedSrc{val: 7}, zap.NewNop())
	roll := r.Pick("move", 3)
	assert.Equal(t, dice.Roll{Label: "move", Sides: 3, Value: 2}, roll)
}

func TestRoller_ChanceFrequency(t *testing.T) {
	r := dice.NewLoggedRoller(dice.NewSeededSource(42), zap.NewNop())
	hits := 0
	const trials = 20000
	for i := 0; i < trials; i++ {
		if r.Chance("paralysis", 25) {
			hits++
		}
	}
	assert.InDelta(t, 0.25, float64(hits)/trials, 0.02)
}
