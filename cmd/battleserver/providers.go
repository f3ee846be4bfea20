package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/advisor"
	"github.com/cory-johannsen/pokeduel/internal/config"
	"github.com/cory-johannsen/pokeduel/internal/dex"
	"github.com/cory-johannsen/pokeduel/internal/game/battle"
	"github.com/cory-johannsen/pokeduel/internal/game/dice"
	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/game/typechart"
	"github.com/cory-johannsen/pokeduel/internal/gameserver"
	"github.com/cory-johannsen/pokeduel/internal/pokeapi"
	"github.com/cory-johannsen/pokeduel/internal/scripting"
	"github.com/cory-johannsen/pokeduel/internal/storage"
	"github.com/cory-johannsen/pokeduel/internal/storage/postgres"
	redisstore "github.com/cory-johannsen/pokeduel/internal/storage/redis"
	"github.com/cory-johannsen/pokeduel/internal/storage/sqlite"
)

func provideChart() *typechart.Chart {
	return typechart.Default()
}

// provideRoller returns the roller used by advisor scripts. Battles seed their own.
func provideRoller(logger *zap.Logger) *dice.Roller {
	return dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
}

// provideRegistry loads the bundled species. A missing directory yields an empty registry.
func provideRegistry(cfg config.Config, logger *zap.Logger) (*species.Registry, error) {
	reg, err := species.LoadDirectory(cfg.Dex.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("species directory not found, bundled dex disabled", zap.String("dir", cfg.Dex.Dir))
			return species.NewRegistry(), nil
		}
		return nil, err
	}
	logger.Info("loaded bundled species", zap.Int("count", reg.Len()), zap.String("dir", cfg.Dex.Dir))
	return reg, nil
}

// provideStore opens the configured species store.
func provideStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (dex.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("species store: sqlite", zap.String("path", cfg.SQLite.Path))
		return store, func() { _ = store.Close() }, nil
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := pool.Ready(ctx, cfg.Database.ReadyTimeout); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres not ready: %w", err)
		}
		logger.Info("species store: postgres", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))
		return postgres.NewSpeciesRepository(pool.DB()), pool.Close, nil
	default:
		return dex.NewMemoryStore(), func() {}, nil
	}
}

// provideFetcher returns the PokeAPI client, or nil when remote lookups are disabled.
func provideFetcher(cfg config.Config, logger *zap.Logger) dex.Fetcher {
	if !cfg.PokeAPI.Enabled {
		return nil
	}
	return pokeapi.NewClient(cfg.PokeAPI, logger)
}

// provideArchive returns the Redis battle archive when enabled, otherwise an in-memory one.
func provideArchive(cfg config.Config, logger *zap.Logger) (storage.Archive, func(), error) {
	if !cfg.Redis.Enabled {
		return storage.NewMemoryArchive(), func() {}, nil
	}
	client, err := redisstore.NewClient(cfg.Redis.Addr)
	if err != nil {
		return nil, nil, err
	}
	archive, err := redisstore.NewArchive(&redisstore.Config{Client: client, TTL: cfg.Redis.TTL})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("battle archive: redis", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	return archive, func() { _ = client.Close() }, nil
}

// provideAdvisor builds the configured move advisor. Kind "none" returns nil.
func provideAdvisor(cfg config.Config, roller *dice.Roller, chart *typechart.Chart, logger *zap.Logger) (battle.Advisor, func(), error) {
	switch cfg.Advisor.Kind {
	case config.AdvisorAnthropic:
		llm, err := advisor.NewLLM(cfg.Advisor, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("advisor: anthropic", zap.String("model", cfg.Advisor.Model))
		return llm, func() {}, nil
	case config.AdvisorLua:
		script, err := scripting.NewScriptAdvisor(cfg.Advisor.Script, cfg.Advisor.InstructionLimit, roller, chart, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("advisor: lua", zap.String("script", cfg.Advisor.Script))
		return script, script.Close, nil
	default:
		return nil, func() {}, nil
	}
}

func provideSimulatorConfig(cfg config.Config) gameserver.SimulatorConfig {
	return gameserver.SimulatorConfig{
		HeuristicTurnCap: cfg.Battle.HeuristicTurnCap,
		AdvisorTimeout:   cfg.Advisor.Timeout,
	}
}
