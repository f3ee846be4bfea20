// Package main provides battlectl, the command line client for the battle server.
//
// battlectl spawns the configured server binary, speaks MCP with it over the child's
// stdin/stdout, and renders species entries and battle logs for a terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/config"
	"github.com/cory-johannsen/pokeduel/internal/observability"
	"github.com/cory-johannsen/pokeduel/internal/rpc"
)

func main() {
	if err := newRootCmd(dialServer).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dialServer loads configuration, applies flag overrides, and starts a server session.
//
// Postcondition: on success the returned cleanup closes the session and flushes the logger.
func dialServer(ctx context.Context, opts *rootOptions) (battleClient, func(), error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.server != "" {
		cfg.Transport.ServerCommand = opts.server
	}
	if opts.timeout > 0 {
		cfg.Transport.CallTimeout = opts.timeout
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	client, err := rpc.Dial(ctx, cfg.Transport, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("connecting to %s: %w", cfg.Transport.ServerCommand, err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Debug("closing server session", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return client, cleanup, nil
}
