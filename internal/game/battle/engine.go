package battle

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/game/dice"
	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/game/typechart"
)

const tracerName = "github.com/cory-johannsen/pokeduel/internal/game/battle"

// Fixed battle constants.
const (
	MaxAP                   = 200
	APRegen                 = 40
	AdvisedTurnCap          = 50
	DefaultHeuristicTurnCap = 500
	ParalysisSkipPercent    = 25
	InitialStatusPercent    = 50
)

// initialAfflictions is the set the pre-battle status roll draws from, in roll order.
var initialAfflictions = []Status{StatusPoisoned, StatusParalyzed, StatusBurned}

// Rules parameterizes the resource economy and the turn cap.
type Rules struct {
	// ResourceGated enables AP: moves cost their power and AP regenerates each turn.
	ResourceGated bool
	StartAP       int
	MaxAP         int
	APRegen       int
	// TurnCap ends the battle after this many turns with both sides alive.
	TurnCap int
}

// HeuristicRules returns rules without AP and with the given safety turn cap.
//
// Precondition: turnCap >= 1.
func HeuristicRules(turnCap int) Rules {
	return Rules{TurnCap: turnCap}
}

// AdvisedRules returns the AP economy used with an advisor: start at 200, regenerate 40 per
// turn up to 200, and stop after 50 turns.
func AdvisedRules() Rules {
	return Rules{ResourceGated: true, StartAP: MaxAP, MaxAP: MaxAP, APRegen: APRegen, TurnCap: AdvisedTurnCap}
}

// Validate reports rule combinations the engine cannot run with.
func (r Rules) Validate() error {
	if r.TurnCap < 1 {
		return fmt.Errorf("battle: turn cap must be >= 1, got %d", r.TurnCap)
	}
	if r.ResourceGated {
		if r.MaxAP < 1 || r.StartAP < 0 || r.StartAP > r.MaxAP || r.APRegen < 0 {
			return errors.New("battle: AP rules require 0 <= start <= max, max >= 1, regen >= 0")
		}
	}
	return nil
}

// Phase is a state of the battle state machine.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseInitialStatusRoll
	PhaseTurnStart
	PhaseAttackerActs
	PhaseAttackerCheckFaint
	PhaseDefenderActs
	PhaseDefenderCheckFaint
	PhaseEndOfTurnStatus
	PhaseTerminal
)

var phaseNames = [...]string{
	"setup", "initial_status_roll", "turn_start", "attacker_acts", "attacker_check_faint",
	"defender_acts", "defender_check_faint", "end_of_turn_status", "terminal",
}

// String returns the phase name.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Result is the terminal outcome of a battle.
type Result struct {
	// Winner is the winner's display name; empty when Draw is true.
	Winner     string
	Draw       bool
	Turns      int
	Log        []string
	Commentary []string
	// Sides holds the final combatant states in listing order.
	Sides [2]Combatant
}

// Engine runs battles. An Engine holds no per-battle state; each Run owns its combatants
// and log, so one Engine may run battles concurrently when its strategy and roller are
// safe for concurrent use.
type Engine struct {
	rules    Rules
	strategy Strategy
	chart    *typechart.Chart
	roller   *dice.Roller
	logger   *zap.Logger
	// narrates is set for strategies whose every decision adds a commentary pair.
	narrates bool
}

// NewEngine creates an Engine.
//
// Precondition: rules.Validate() == nil; every other argument must be non-nil.
func NewEngine(rules Rules, strategy Strategy, chart *typechart.Chart, roller *dice.Roller, logger *zap.Logger) *Engine {
	n, ok := strategy.(Narrator)
	return &Engine{
		rules:    rules,
		strategy: strategy,
		chart:    chart,
		roller:   roller,
		logger:   logger,
		narrates: ok && n.Narrates(),
	}
}

// Rules returns the engine's rules.
func (e *Engine) Rules() Rules { return e.rules }

// Strategy returns the engine's move-selection strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// state is the battle record for one Run.
type state struct {
	phase      Phase
	sides      [2]*Combatant // listing order
	first      *Combatant    // acts first every turn
	second     *Combatant
	turn       int
	log        []string
	commentary []string
	winner     *Combatant
	draw       bool
}

func (s *state) logf(format string, args ...any) {
	s.log = append(s.log, fmt.Sprintf(format, args...))
}

// Run fights p1 against p2 to completion.
//
// Precondition: p1 and p2 must be normalized profiles.
// Postcondition: Returns a Result with a winner or a draw, or ctx's error if ctx ends
// between turns. Panics with ErrInvariantViolation if the strategy breaks its contract.
func (e *Engine) Run(ctx context.Context, p1, p2 *species.Profile) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "battle.run", trace.WithAttributes(
		attribute.String("battle.pokemon1", p1.Name),
		attribute.String("battle.pokemon2", p2.Name),
		attribute.String("battle.strategy", e.strategy.Name()),
	))
	defer span.End()

	s := &state{phase: PhaseSetup}
	for s.phase != PhaseTerminal {
		if err := e.step(ctx, s, p1, p2); err != nil {
			span.RecordError(err)
			return Result{}, err
		}
	}

	res := Result{
		Draw:       s.draw,
		Turns:      s.turn,
		Log:        s.log,
		Commentary: s.commentary,
		Sides:      [2]Combatant{*s.sides[0], *s.sides[1]},
	}
	if s.winner != nil {
		res.Winner = s.winner.Name()
	}
	span.SetAttributes(attribute.String("battle.winner", res.Winner), attribute.Int("battle.turns", res.Turns))
	e.logger.Debug("battle finished",
		zap.String("winner", res.Winner),
		zap.Bool("draw", res.Draw),
		zap.Int("turns", res.Turns),
	)
	return res, nil
}

// step performs the work of the current phase and advances to the next one.
func (e *Engine) step(ctx context.Context, s *state, p1, p2 *species.Profile) error {
	switch s.phase {
	case PhaseSetup:
		e.setup(s, p1, p2)
		s.phase = PhaseInitialStatusRoll

	case PhaseInitialStatusRoll:
		e.rollInitialStatus(s)
		s.phase = PhaseTurnStart

	case PhaseTurnStart:
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("battle interrupted at turn %d: %w", s.turn, err)
		}
		if s.turn >= e.rules.TurnCap {
			s.logf("The turn limit of %d has been reached!", e.rules.TurnCap)
			e.finish(s)
			return nil
		}
		s.turn++
		s.logf("--- Turn %d ---", s.turn)
		if e.rules.ResourceGated {
			for _, c := range s.sides {
				c.Regenerate(e.rules.APRegen, e.rules.MaxAP)
				e.checkBounds(c)
			}
		}
		s.phase = PhaseAttackerActs

	case PhaseAttackerActs:
		e.act(ctx, s, s.first, s.second)
		s.phase = PhaseAttackerCheckFaint

	case PhaseAttackerCheckFaint:
		if !s.second.Alive() {
			e.finish(s)
			return nil
		}
		s.phase = PhaseDefenderActs

	case PhaseDefenderActs:
		e.act(ctx, s, s.second, s.first)
		s.phase = PhaseDefenderCheckFaint

	case PhaseDefenderCheckFaint:
		if !s.first.Alive() {
			e.finish(s)
			return nil
		}
		s.phase = PhaseEndOfTurnStatus

	case PhaseEndOfTurnStatus:
		e.endOfTurn(s)
		if !s.first.Alive() || !s.second.Alive() {
			e.finish(s)
			return nil
		}
		s.phase = PhaseTurnStart

	default:
		panic(fmt.Errorf("%w: step called in phase %s", ErrInvariantViolation, s.phase))
	}
	return nil
}

func (e *Engine) setup(s *state, p1, p2 *species.Profile) {
	a, b := NewCombatant(p1, e.rules), NewCombatant(p2, e.rules)
	s.sides = [2]*Combatant{a, b}
	s.first, s.second = a, b
	if b.Profile.Stats.Speed > a.Profile.Stats.Speed {
		s.first, s.second = b, a
	}

	s.logf("Battle Start: %s vs. %s!", a.Name(), b.Name())
	s.logf("%s", separator)
	for _, c := range s.sides {
		s.logf("%s (%s) HP: %d. Moves: %s", c.Name(), joinDisplay(c.Profile.Types), c.MaxHP, moveList(c.Profile.Moves))
	}
	s.logf("%s is faster and will attack first!", s.first.Name())
}

func (e *Engine) rollInitialStatus(s *state) {
	if !e.roller.Chance("initial status", InitialStatusPercent) {
		return
	}
	target := s.sides[e.roller.Pick("initial status side", len(s.sides)).Value]
	target.Status = initialAfflictions[e.roller.Pick("initial status kind", len(initialAfflictions)).Value]
	s.logf("%s was afflicted with %s before the battle!", target.Name(), target.Status.noun())
}

// act runs one combatant's action for the turn.
func (e *Engine) act(ctx context.Context, s *state, attacker, defender *Combatant) {
	if !attacker.Alive() {
		return
	}
	if attacker.Status == StatusParalyzed && e.roller.Chance("paralysis", ParalysisSkipPercent) {
		s.logf("%s is paralyzed! It can't move!", attacker.Name())
		return
	}

	d := e.strategy.Choose(ctx, attacker, defender, s.turn)
	if e.narrates {
		s.commentary = append(s.commentary, d.Rationale, d.Commentary)
	}
	if d.Move == nil {
		if len(attacker.Profile.Moves) == 0 {
			s.logf("%s has no damaging moves to use!", attacker.Name())
		} else {
			s.logf("%s is saving up AP! (%d/%d AP)", attacker.Name(), attacker.AP, e.rules.MaxAP)
		}
		return
	}
	move := *d.Move
	e.mustBeEligible(attacker, move)

	hit := ComputeDamage(move, attacker.Profile, defender.Profile, e.chart)
	defender.ApplyDamage(hit.Damage)
	if e.rules.ResourceGated {
		attacker.Spend(move.Power)
	}
	e.checkBounds(attacker)
	e.checkBounds(defender)

	s.logf("%s used %s!", attacker.Name(), species.DisplayName(move.Name))
	if phrase := effectivenessPhrase(hit.Effectiveness); phrase != "" {
		s.logf("%s", phrase)
	}
	s.logf("It dealt %d damage (%sx), leaving %s with %d/%d HP.",
		hit.Damage, formatMultiplier(hit.Effectiveness), defender.Name(), defender.HP, defender.MaxHP)
	if e.rules.ResourceGated {
		s.logf("%s has %d/%d AP left.", attacker.Name(), attacker.AP, e.rules.MaxAP)
	}
	if !defender.Alive() {
		s.logf("%s has fainted!", defender.Name())
	}
}

func (e *Engine) endOfTurn(s *state) {
	for _, c := range [2]*Combatant{s.first, s.second} {
		if !c.Alive() || !c.Status.DamagesOverTime() {
			continue
		}
		dmg := max(1, c.MaxHP/8)
		c.ApplyDamage(dmg)
		e.checkBounds(c)
		s.logf("%s is hurt by %s! It lost %d HP (%d/%d HP).", c.Name(), c.Status.noun(), dmg, c.HP, c.MaxHP)
		if !c.Alive() {
			s.logf("%s has fainted!", c.Name())
		}
	}
}

// finish decides the outcome and enters PhaseTerminal.
// A lone survivor wins; with both alive the larger health fraction wins; anything else
// is a draw.
func (e *Engine) finish(s *state) {
	a, b := s.sides[0], s.sides[1]
	switch {
	case a.Alive() && !b.Alive():
		s.winner = a
	case b.Alive() && !a.Alive():
		s.winner = b
	case a.Alive() && b.Alive():
		switch cmp := a.HealthFraction(b); {
		case cmp > 0:
			s.winner = a
		case cmp < 0:
			s.winner = b
		default:
			s.draw = true
		}
	default:
		s.draw = true
	}

	if s.winner != nil {
		s.logf("The battle is over! The winner is %s!", s.winner.Name())
	} else {
		s.logf("The battle is over! It's a draw!")
	}
	s.phase = PhaseTerminal
}

// mustBeEligible panics if the strategy returned a move the attacker may not use.
func (e *Engine) mustBeEligible(c *Combatant, m species.Move) {
	for _, own := range c.Profile.Moves {
		if own.Name == m.Name && own.Power == m.Power {
			if !c.Affordable(m) {
				panic(fmt.Errorf("%w: %s cannot afford %s (%d AP)", ErrInvariantViolation, c.Name(), m.Name, c.AP))
			}
			return
		}
	}
	panic(fmt.Errorf("%w: %s does not know %s", ErrInvariantViolation, c.Name(), m.Name))
}

func (e *Engine) checkBounds(c *Combatant) {
	if c.HP < 0 || c.HP > c.MaxHP {
		panic(fmt.Errorf("%w: %s HP %d outside [0, %d]", ErrInvariantViolation, c.Name(), c.HP, c.MaxHP))
	}
	limit := 0
	if e.rules.ResourceGated {
		limit = e.rules.MaxAP
	}
	if c.AP < 0 || c.AP > limit {
		panic(fmt.Errorf("%w: %s AP %d outside [0, %d]", ErrInvariantViolation, c.Name(), c.AP, limit))
	}
}
