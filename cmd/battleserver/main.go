// Package main provides the battle server binary: an MCP server on stdin/stdout exposing
// species lookup and the battle simulator.
//
// Stdout carries the protocol stream; all logging goes to stderr.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/config"
	"github.com/cory-johannsen/pokeduel/internal/gameserver"
	"github.com/cory-johannsen/pokeduel/internal/observability"
	"github.com/cory-johannsen/pokeduel/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and POKEDUEL_ environment overrides")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("initializing tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("shutting down tracing", zap.Error(err))
		}
	}()

	mcpServer, cleanup, err := initializeServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("initializing battle server", zap.Error(err))
	}
	defer cleanup()

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("mcp-stdio", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			return gameserver.Serve(ctx, mcpServer, &mcp.StdioTransport{})
		},
	})

	logger.Info("battle server ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("advisor", cfg.Advisor.Kind),
		zap.Duration("startup", time.Since(start)),
	)
	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("battle server stopped", zap.Error(err))
		return
	}
	logger.Info("battle server stopped")
}
