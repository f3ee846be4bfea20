// Package dice provides the randomness abstraction used by battles, plus an audit record
// for every random draw.
package dice

import "fmt"

// Roll is the audit record of a single random draw.
//
// Invariant: 0 <= Value < Sides.
type Roll struct {
	Label string // what the draw decided, e.g. "paralysis"
	Sides int    // number of equally likely outcomes
	Value int    // drawn outcome
}

// String returns a human-readable audit string in the format:
//
//	"paralysis d100 → 17"
//
// Precondition: r.Label is non-empty.
func (r Roll) String() string {
	if r.Label == "" {
		panic("dice: Roll.String() precondition violated: Label must be non-empty")
	}
	return fmt.Sprintf("%s d%d \u2192 %d", r.Label, r.Sides, r.Value)
}

// Source is the randomness provider for battles.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
