package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged random draws.
// All draws are logged at debug level with label, sides, and value.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that draws from src and logs each draw to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Pick draws a uniformly random index in [0, n).
//
// Precondition: n > 0.
// Postcondition: Returns a Roll with Value in [0, n); the draw is logged.
func (r *Roller) Pick(label string, n int) Roll {
	roll := Roll{Label: label, Sides: n, Value: r.src.Intn(n)}
	r.logger.Debug("dice roll",
		zap.String("label", roll.Label),
		zap.Int("sides", roll.Sides),
		zap.Int("value", roll.Value),
	)
	return roll
}

// Chance reports whether an event with the given percent probability happens.
//
// Precondition: 0 <= percent <= 100.
// Postcondition: Returns true with probability percent/100.
func (r *Roller) Chance(label string, percent int) bool {
	roll := r.src.Intn(100)
	hit := roll < percent
	r.logger.Debug("dice chance",
		zap.String("label", label),
		zap.Int("percent", percent),
		zap.Int("roll", roll),
		zap.Bool("hit", hit),
	)
	return hit
}
