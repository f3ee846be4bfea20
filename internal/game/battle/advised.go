package battle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/game/typechart"
)

//go:generate mockgen -destination=mock/mock_advisor.go -package=battlemock github.com/cory-johannsen/pokeduel/internal/game/battle Advisor

// ErrAdviceRejected is recorded when an advisor names a move outside the affordable set.
var ErrAdviceRejected = errors.New("advisor chose a move that is not available")

// Fixed narration used whenever the advisor cannot be used.
const (
	FallbackRationale  = "The advisor was unavailable, so the strongest affordable move was chosen."
	FallbackCommentary = "A straightforward, powerful attack!"
)

// Narration substituted for whichever half of accepted advice is blank.
const (
	DefaultRationale  = "The advisor picked this move without explaining its strategy."
	DefaultCommentary = "The battle rages on!"
)

// Snapshot is the read-only view of a combatant handed to an advisor.
type Snapshot struct {
	Name   string
	Types  []string
	HP     int
	MaxHP  int
	AP     int
	Status Status
}

func snapshotOf(c *Combatant) Snapshot {
	return Snapshot{
		Name:   c.Name(),
		Types:  append([]string(nil), c.Profile.Types...),
		HP:     c.HP,
		MaxHP:  c.MaxHP,
		AP:     c.AP,
		Status: c.Status,
	}
}

// MoveOption is one affordable move together with its effectiveness against the defender.
type MoveOption struct {
	Move          species.Move
	Effectiveness float64
}

// AdviceRequest is the battle state an advisor chooses from.
//
// Invariant: Options is non-empty.
type AdviceRequest struct {
	Turn     int
	Attacker Snapshot
	Defender Snapshot
	Options  []MoveOption
}

// Advice is an advisor's answer: the chosen move name plus narration.
type Advice struct {
	Move       string
	Strategy   string
	Commentary string
}

// Advisor proposes a move for an attacker. Implementations may be slow or fail; the Advised
// strategy bounds and absorbs both.
type Advisor interface {
	Advise(ctx context.Context, req AdviceRequest) (Advice, error)
}

// Advised delegates move choice to an external Advisor, restricted to moves the attacker can
// afford, and falls back to the strongest affordable move when the advisor fails.
type Advised struct {
	advisor Advisor
	chart   *typechart.Chart
	timeout time.Duration
	logger  *zap.Logger
}

// NewAdvised creates an Advised strategy. A timeout <= 0 leaves the advisor unbounded
// except by the caller's context.
//
// Precondition: advisor, chart, and logger must be non-nil.
func NewAdvised(advisor Advisor, chart *typechart.Chart, timeout time.Duration, logger *zap.Logger) *Advised {
	return &Advised{advisor: advisor, chart: chart, timeout: timeout, logger: logger}
}

// Name returns "advised".
func (a *Advised) Name() string { return "advised" }

// Narrates implements Narrator.
func (a *Advised) Narrates() bool { return true }

// Choose implements Strategy.
//
// Postcondition: when at least one move is affordable a move is always returned, whatever
// the advisor does; otherwise the attacker saves up and Move is nil. Rationale and
// Commentary are always non-empty.
func (a *Advised) Choose(ctx context.Context, attacker, defender *Combatant, turn int) Decision {
	affordable := make([]species.Move, 0, len(attacker.Profile.Moves))
	for _, m := range attacker.Profile.Moves {
		if m.Power <= attacker.AP {
			affordable = append(affordable, m)
		}
	}
	if len(affordable) == 0 {
		return Decision{
			Rationale:  fmt.Sprintf("%s does not have enough AP for any move and saves up.", attacker.Name()),
			Commentary: fmt.Sprintf("%s is biding its time, gathering strength!", attacker.Name()),
		}
	}

	req := AdviceRequest{
		Turn:     turn,
		Attacker: snapshotOf(attacker),
		Defender: snapshotOf(defender),
		Options:  make([]MoveOption, len(affordable)),
	}
	for i, m := range affordable {
		req.Options[i] = MoveOption{Move: m, Effectiveness: a.chart.Multiplier(m.Type, defender.Profile.Types)}
	}

	advice, err := a.ask(ctx, req)
	if err == nil {
		if m, ok := matchMove(advice.Move, affordable); ok {
			return Decision{
				Move:       &m,
				Rationale:  orDefault(advice.Strategy, DefaultRationale),
				Commentary: orDefault(advice.Commentary, DefaultCommentary),
			}
		}
		err = fmt.Errorf("%w: %q", ErrAdviceRejected, advice.Move)
	}

	a.logger.Warn("advisor failure",
		zap.String("attacker", attacker.Name()),
		zap.Int("turn", turn),
		zap.Error(err),
	)
	m := strongest(affordable)
	return Decision{Move: &m, Rationale: FallbackRationale, Commentary: FallbackCommentary}
}

// ask calls the advisor under the strategy timeout. The call is abandoned, not awaited,
// once the deadline passes.
func (a *Advised) ask(ctx context.Context, req AdviceRequest) (Advice, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "battle.advise")
	defer span.End()
	span.SetAttributes(
		attribute.Int("battle.turn", req.Turn),
		attribute.String("battle.attacker", req.Attacker.Name),
	)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	type reply struct {
		advice Advice
		err    error
	}
	ch := make(chan reply, 1)
	go func() {
		advice, err := a.advisor.Advise(ctx, req)
		ch <- reply{advice: advice, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, "advisor failed")
		}
		return r.advice, r.err
	case <-ctx.Done():
		span.SetStatus(codes.Error, "advisor timed out")
		return Advice{}, fmt.Errorf("advisor: %w", ctx.Err())
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// matchMove finds name in moves, ignoring case and surrounding space and treating spaces
// as hyphens.
func matchMove(name string, moves []species.Move) (species.Move, bool) {
	key := strings.ReplaceAll(species.NormalizeName(name), " ", "-")
	for _, m := range moves {
		if m.Name == key {
			return m, true
		}
	}
	return species.Move{}, false
}

// strongest returns the highest-power move, keeping the earliest on ties.
//
// Precondition: moves is non-empty.
func strongest(moves []species.Move) species.Move {
	best := moves[0]
	for _, m := range moves[1:] {
		if m.Power > best.Power {
			best = m
		}
	}
	return best
}
