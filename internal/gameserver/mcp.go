// Package gameserver exposes the battle simulator as an MCP server: species lookup and
// archived battles as resources, and the battle itself as a tool.
package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/protocol"
	"github.com/cory-johannsen/pokeduel/internal/storage"
)

const jsonMIME = "application/json"

// NewMCPServer builds an MCP server backed by sim.
//
// Precondition: sim and logger must be non-nil.
// Postcondition: the server registers the battle tool, the pokemon:// and battle:// resource
// templates, and the battles://recent resource.
func NewMCPServer(sim *Simulator, logger *zap.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: protocol.ServerName, Version: protocol.ServerVersion}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        protocol.ToolBattle,
		Description: "Simulate a turn-based battle between two pokemon and return the winner with the full battle log",
	}, BattleToolHandler(sim, logger))

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "pokemon",
		Title:       "Pokemon",
		Description: "Battle-ready species profile: types, base stats, curated moveset, abilities, and evolution chain",
		MIMEType:    jsonMIME,
		URITemplate: protocol.PokemonURITemplate,
	}, PokemonResourceHandler(sim))

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "battle",
		Title:       "Archived battle",
		Description: "A finished battle with its seed, winner, and logs",
		MIMEType:    jsonMIME,
		URITemplate: protocol.BattleURITemplate,
	}, BattleResourceHandler(sim))

	server.AddResource(&mcp.Resource{
		Name:        "recent-battles",
		Title:       "Recent battles",
		Description: "Ids of the most recently archived battles, newest first",
		MIMEType:    jsonMIME,
		URI:         protocol.RecentBattlesURI,
	}, RecentBattlesHandler(sim))

	return server
}

// BattleToolHandler runs one battle per call. Failures are reported as tool errors.
func BattleToolHandler(sim *Simulator, logger *zap.Logger) mcp.ToolHandlerFor[protocol.BattleArgs, protocol.BattleReport] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args protocol.BattleArgs) (*mcp.CallToolResult, protocol.BattleReport, error) {
		report, err := sim.Simulate(ctx, args)
		if err != nil {
			logger.Warn("battle request failed",
				zap.String("pokemon1", args.Pokemon1),
				zap.String("pokemon2", args.Pokemon2),
				zap.Error(err),
			)
			return nil, protocol.BattleReport{}, err
		}
		return nil, *report, nil
	}
}

// PokemonResourceHandler serves pokemon://{name}.
func PokemonResourceHandler(sim *Simulator) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		name, err := protocol.ParsePokemonURI(uri)
		if err != nil {
			return nil, err
		}
		p, err := sim.Lookup(ctx, name)
		if err != nil {
			if errors.Is(err, species.ErrNotFound) {
				return nil, mcp.ResourceNotFoundError(uri)
			}
			return nil, fmt.Errorf("looking up %q: %w", name, err)
		}
		return jsonResource(uri, p)
	}
}

// BattleResourceHandler serves battle://{id}.
func BattleResourceHandler(sim *Simulator) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		id, err := protocol.ParseBattleURI(uri)
		if err != nil {
			return nil, err
		}
		report, err := sim.Battle(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrRecordNotFound) {
				return nil, mcp.ResourceNotFoundError(uri)
			}
			return nil, fmt.Errorf("loading battle %q: %w", id, err)
		}
		return jsonResource(uri, report)
	}
}

// RecentBattlesHandler serves battles://recent.
func RecentBattlesHandler(sim *Simulator) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		ids, err := sim.Recent(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing battles: %w", err)
		}
		return jsonResource(req.Params.URI, map[string][]string{"battles": nonNil(ids)})
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: jsonMIME, Text: string(data)}},
	}, nil
}

// Serve runs server over transport until ctx ends or the peer disconnects.
func Serve(ctx context.Context, server *mcp.Server, transport mcp.Transport) error {
	if err := server.Run(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serving mcp: %w", err)
	}
	return nil
}
