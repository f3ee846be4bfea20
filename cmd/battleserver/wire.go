//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/config"
	"github.com/cory-johannsen/pokeduel/internal/dex"
	"github.com/cory-johannsen/pokeduel/internal/gameserver"
)

// initializeServer assembles the MCP battle server from configuration.
func initializeServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*mcp.Server, func(), error) {
	wire.Build(
		provideChart,
		provideRoller,
		provideRegistry,
		provideStore,
		provideFetcher,
		dex.New,
		wire.Bind(new(gameserver.SpeciesLookup), new(*dex.Dex)),
		provideArchive,
		provideAdvisor,
		provideSimulatorConfig,
		gameserver.NewSimulator,
		gameserver.NewMCPServer,
	)
	return nil, nil, nil
}
