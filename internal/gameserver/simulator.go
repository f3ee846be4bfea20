package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/pokeduel/internal/game/battle"
	"github.com/cory-johannsen/pokeduel/internal/game/dice"
	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/game/typechart"
	"github.com/cory-johannsen/pokeduel/internal/protocol"
	"github.com/cory-johannsen/pokeduel/internal/storage"
)

// ErrInvalidBattle is returned for a battle request that cannot be run as given.
var ErrInvalidBattle = errors.New("invalid battle request")

// recentLimit bounds the battles://recent listing.
const recentLimit = 20

// SpeciesLookup resolves a species name to a battle-ready profile.
//
// Postcondition: an unknown name returns an error wrapping species.ErrNotFound.
type SpeciesLookup interface {
	Lookup(ctx context.Context, name string) (*species.Profile, error)
}

// SimulatorConfig holds per-battle engine settings.
type SimulatorConfig struct {
	HeuristicTurnCap int
	AdvisorTimeout   time.Duration
}

// Simulator runs battles between looked-up species and archives the results.
// It holds no per-battle state and is safe for concurrent use.
type Simulator struct {
	lookup  SpeciesLookup
	archive storage.Archive
	chart   *typechart.Chart
	advisor battle.Advisor
	cfg     SimulatorConfig
	logger  *zap.Logger
	newID   func() string
	now     func() time.Time
}

// NewSimulator creates a Simulator.
//
// Precondition: lookup, archive, chart, and logger must be non-nil. advisor may be nil, in
// which case only the heuristic strategy is available.
func NewSimulator(lookup SpeciesLookup, archive storage.Archive, chart *typechart.Chart, advisor battle.Advisor, cfg SimulatorConfig, logger *zap.Logger) *Simulator {
	return &Simulator{
		lookup:  lookup,
		archive: archive,
		chart:   chart,
		advisor: advisor,
		cfg:     cfg,
		logger:  logger,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Lookup resolves one species.
func (s *Simulator) Lookup(ctx context.Context, name string) (*species.Profile, error) {
	return s.lookup.Lookup(ctx, name)
}

// Simulate runs the requested battle to completion.
//
// Postcondition: Returns a complete report, or an error and no partial log. An unknown
// species yields an error wrapping species.ErrNotFound; a malformed request one wrapping
// ErrInvalidBattle. Archiving failures are logged and do not fail the battle.
func (s *Simulator) Simulate(ctx context.Context, args protocol.BattleArgs) (*protocol.BattleReport, error) {
	name1 := species.NormalizeName(args.Pokemon1)
	name2 := species.NormalizeName(args.Pokemon2)
	if name1 == "" || name2 == "" {
		return nil, fmt.Errorf("%w: pokemon1 and pokemon2 are required", ErrInvalidBattle)
	}
	strategy, err := s.strategyName(args.Strategy)
	if err != nil {
		return nil, err
	}
	seed := dice.NewSeed()
	if args.Seed != nil {
		if *args.Seed > dice.MaxSeed {
			return nil, fmt.Errorf("%w: seed must not exceed %d", ErrInvalidBattle, uint64(dice.MaxSeed))
		}
		seed = *args.Seed
	}

	var p1, p2 *species.Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p1, err = s.resolve(gctx, name1)
		return err
	})
	g.Go(func() (err error) {
		p2, err = s.resolve(gctx, name2)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	roller := dice.NewLoggedRoller(dice.NewSeededSource(seed), s.logger)
	res, err := s.engine(strategy, roller).Run(ctx, p1, p2)
	if err != nil {
		return nil, fmt.Errorf("running battle: %w", err)
	}

	report := &protocol.BattleReport{
		ID:            s.newID(),
		Pokemon1:      p1.Name,
		Pokemon2:      p2.Name,
		Strategy:      strategy,
		Seed:          seed,
		Winner:        res.Winner,
		Draw:          res.Draw,
		Turns:         res.Turns,
		BattleLog:     nonNil(res.Log),
		CommentaryLog: res.Commentary,
	}
	if err := s.archive.Save(ctx, recordOf(report, s.now().UTC())); err != nil {
		s.logger.Warn("archiving battle failed", zap.String("id", report.ID), zap.Error(err))
	}
	s.logger.Info("battle simulated",
		zap.String("id", report.ID),
		zap.String("pokemon1", p1.Name),
		zap.String("pokemon2", p2.Name),
		zap.String("strategy", strategy),
		zap.String("winner", report.Winner),
		zap.Int("turns", report.Turns),
	)
	return report, nil
}

// Battle returns an archived battle.
//
// Postcondition: an unknown id returns an error wrapping storage.ErrRecordNotFound.
func (s *Simulator) Battle(ctx context.Context, id string) (*protocol.BattleReport, error) {
	rec, err := s.archive.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return reportOf(rec), nil
}

// Recent returns the ids of the most recently archived battles, newest first.
func (s *Simulator) Recent(ctx context.Context) ([]string, error) {
	return s.archive.Recent(ctx, recentLimit)
}

func (s *Simulator) resolve(ctx context.Context, name string) (*species.Profile, error) {
	p, err := s.lookup.Lookup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("species %q: %w", name, err)
	}
	return p, nil
}

// strategyName resolves the requested strategy. An empty request picks advised when an
// advisor is configured.
func (s *Simulator) strategyName(requested string) (string, error) {
	switch species.NormalizeName(requested) {
	case "":
		if s.advisor != nil {
			return protocol.StrategyAdvised, nil
		}
		return protocol.StrategyHeuristic, nil
	case protocol.StrategyHeuristic:
		return protocol.StrategyHeuristic, nil
	case protocol.StrategyAdvised:
		if s.advisor == nil {
			return "", fmt.Errorf("%w: no advisor is configured for the advised strategy", ErrInvalidBattle)
		}
		return protocol.StrategyAdvised, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidBattle, requested)
	}
}

func (s *Simulator) engine(strategy string, roller *dice.Roller) *battle.Engine {
	if strategy == protocol.StrategyAdvised {
		return battle.NewEngine(battle.AdvisedRules(), battle.NewAdvised(s.advisor, s.chart, s.cfg.AdvisorTimeout, s.logger), s.chart, roller, s.logger)
	}
	return battle.NewEngine(battle.HeuristicRules(s.cfg.HeuristicTurnCap), battle.NewHeuristic(s.chart, roller), s.chart, roller, s.logger)
}

func recordOf(r *protocol.BattleReport, at time.Time) storage.Record {
	return storage.Record{
		ID:            r.ID,
		Pokemon1:      r.Pokemon1,
		Pokemon2:      r.Pokemon2,
		Strategy:      r.Strategy,
		Seed:          r.Seed,
		Winner:        r.Winner,
		Draw:          r.Draw,
		Turns:         r.Turns,
		BattleLog:     r.BattleLog,
		CommentaryLog: r.CommentaryLog,
		CreatedAt:     at,
	}
}

func reportOf(rec storage.Record) *protocol.BattleReport {
	return &protocol.BattleReport{
		ID:            rec.ID,
		Pokemon1:      rec.Pokemon1,
		Pokemon2:      rec.Pokemon2,
		Strategy:      rec.Strategy,
		Seed:          rec.Seed,
		Winner:        rec.Winner,
		Draw:          rec.Draw,
		Turns:         rec.Turns,
		BattleLog:     nonNil(rec.BattleLog),
		CommentaryLog: rec.CommentaryLog,
	}
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
