// Package protocol defines the wire vocabulary shared by the battle server and its clients:
// method names, resource URIs, and the battle tool's argument and report shapes.
package protocol

import (
	"fmt"
	"strings"
)

// Version is the protocol revision declared during the handshake.
const Version = "2024-11-05"

// Client identity sent in the initialize request.
const (
	ClientName    = "pokemon-client"
	ClientVersion = "1.0.0"
)

// Server identity reported by the battle server.
const (
	ServerName    = "pokemon-battle"
	ServerVersion = "1.0.0"
)

// JSON-RPC method names.
const (
	MethodInitialize   = "initialize"
	MethodInitialized  = "notifications/initialized"
	MethodReadResource = "resources/read"
	MethodCallTool     = "tools/call"
)

// CodeResourceNotFound is the JSON-RPC error code for an unknown resource.
const CodeResourceNotFound = -32002

// ToolBattle is the name of the battle tool.
const ToolBattle = "battle_simulator"

// Resource URI schemes and templates.
const (
	PokemonScheme      = "pokemon://"
	BattleScheme       = "battle://"
	PokemonURITemplate = PokemonScheme + "{name}"
	BattleURITemplate  = BattleScheme + "{id}"
	RecentBattlesURI   = "battles://recent"
)

// Strategy names accepted by the battle tool.
const (
	StrategyHeuristic = "heuristic"
	StrategyAdvised   = "advised"
)

// PokemonURI returns the resource URI for a species name.
func PokemonURI(name string) string {
	return PokemonScheme + strings.ToLower(strings.TrimSpace(name))
}

// BattleURI returns the resource URI for an archived battle.
func BattleURI(id string) string {
	return BattleScheme + id
}

// ParsePokemonURI extracts the species name from a pokemon:// URI.
func ParsePokemonURI(uri string) (string, error) {
	return parseURI(uri, PokemonScheme)
}

// ParseBattleURI extracts the battle id from a battle:// URI.
func ParseBattleURI(uri string) (string, error) {
	return parseURI(uri, BattleScheme)
}

func parseURI(uri, scheme string) (string, error) {
	rest, ok := strings.CutPrefix(uri, scheme)
	if !ok {
		return "", fmt.Errorf("uri %q does not start with %s", uri, scheme)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("uri %q has no valid identifier", uri)
	}
	return rest, nil
}

// BattleArgs is the battle tool's input.
type BattleArgs struct {
	Pokemon1 string  `json:"pokemon1" jsonschema:"name of the first pokemon, for example pikachu"`
	Pokemon2 string  `json:"pokemon2" jsonschema:"name of the second pokemon"`
	Strategy string  `json:"strategy,omitempty" jsonschema:"move selection: heuristic or advised"`
	Seed     *uint64 `json:"seed,omitempty" jsonschema:"random seed; the same seed replays a heuristic battle exactly"`
}

// BattleReport is the battle tool's output and the body of a battle:// resource.
//
// CommentaryLog holds rationale and commentary lines in pairs, one pair per advised action.
// It is omitted for heuristic battles.
type BattleReport struct {
	ID            string   `json:"id"`
	Pokemon1      string   `json:"pokemon1"`
	Pokemon2      string   `json:"pokemon2"`
	Strategy      string   `json:"strategy"`
	Seed          uint64   `json:"seed"`
	Winner        string   `json:"winner"`
	Draw          bool     `json:"draw"`
	Turns         int      `json:"turns"`
	BattleLog     []string `json:"battle_log"`
	CommentaryLog []string `json:"commentary_log,omitempty"`
}
