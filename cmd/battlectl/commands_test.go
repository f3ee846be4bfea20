package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/protocol"
)

type fakeClient struct {
	profiles map[string]*species.Profile
	battles  map[string]*protocol.BattleReport
	lastArgs protocol.BattleArgs
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		profiles: map[string]*species.Profile{
			"pikachu": {
				ID: 25, Name: "pikachu", Types: []string{"electric"},
				Stats:     species.Stats{HP: 35, Attack: 55, Defense: 40, SpecialAttack: 50, SpecialDefense: 50, Speed: 90},
				Moves:     []species.Move{{Name: "thunder-punch", Power: 75, Type: "electric", DamageClass: species.Physical}},
				Abilities: []species.Ability{{Name: "static"}, {Name: "lightning-rod", Hidden: true}},
				Evolution: []string{"pichu", "pikachu", "raichu"},
			},
			"squirtle": {
				ID: 7, Name: "squirtle", Types: []string{"water"},
				Stats: species.Stats{HP: 44, Attack: 48, Defense: 65, SpecialAttack: 50, SpecialDefense: 64, Speed: 43},
				Moves: []species.Move{{Name: "water-gun", Power: 40, Type: "water", DamageClass: species.Special}},
			},
		},
		battles: map[string]*protocol.BattleReport{},
	}
}

func (f *fakeClient) GetPokemon(_ context.Context, name string) (*species.Profile, error) {
	p, ok := f.profiles[species.NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, species.ErrNotFound)
	}
	return p, nil
}

func (f *fakeClient) Battle(_ context.Context, args protocol.BattleArgs) (*protocol.BattleReport, error) {
	f.lastArgs = args
	if _, ok := f.profiles[args.Pokemon1]; !ok {
		return nil, fmt.Errorf("%s: %w", args.Pokemon1, species.ErrNotFound)
	}
	r := &protocol.BattleReport{
		ID:            "battle-1",
		Pokemon1:      args.Pokemon1,
		Pokemon2:      args.Pokemon2,
		Strategy:      protocol.StrategyAdvised,
		Winner:        "Pikachu",
		Turns:         2,
		BattleLog:     []string{"Battle start!", "Pikachu used Thunder Punch!"},
		CommentaryLog: []string{"Press the type advantage", "Sparks fly!"},
	}
	f.battles[r.ID] = r
	return r, nil
}

func (f *fakeClient) GetBattle(_ context.Context, id string) (*protocol.BattleReport, error) {
	r, ok := f.battles[id]
	if !ok {
		return nil, errors.New("battle not found")
	}
	return r, nil
}

// run executes the command tree against client and returns its output.
func run(t *testing.T, client *fakeClient, stdin string, args ...string) (string, *rootOptions, error) {
	t.Helper()
	var (
		out     bytes.Buffer
		seen    *rootOptions
		cleaned bool
	)
	dial := func(_ context.Context, opts *rootOptions) (battleClient, func(), error) {
		seen = opts
		return client, func() { cleaned = true }, nil
	}
	cmd := newRootCmd(dial)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	if seen != nil {
		assert.True(t, cleaned, "session cleanup must run")
	}
	return out.String(), seen, err
}

func TestLookup_PrintsEntry(t *testing.T) {
	out, _, err := run(t, newFakeClient(), "", "lookup", "Pikachu")
	require.NoError(t, err)
	assert.Contains(t, out, "--- Pokédex Entry ---")
	assert.Contains(t, out, "Name: Pikachu (ID: 25)")
	assert.Contains(t, out, "Evolution Line: Pichu -> Pikachu -> Raichu")
	assert.Contains(t, out, "  - Electric")
	assert.Contains(t, out, "  - Special Defense: 50")
	assert.Contains(t, out, "  - Lightning Rod (Hidden)")
	assert.Contains(t, out, "  - Thunder Punch (Power: 75, Type: Electric, Class: Physical)")
}

func TestLookup_NotFound(t *testing.T) {
	_, _, err := run(t, newFakeClient(), "", "lookup", "missingno")
	require.Error(t, err)
	assert.ErrorIs(t, err, species.ErrNotFound)
}

func TestLookup_RequiresOneArg(t *testing.T) {
	_, seen, err := run(t, newFakeClient(), "", "lookup")
	require.Error(t, err)
	assert.Nil(t, seen, "argument errors must not start a session")
}

func TestBattle_PassesFlags(t *testing.T) {
	client := newFakeClient()
	out, opts, err := run(t, client, "", "--timeout", "5s", "--server", "./bin/battleserver",
		"battle", "pikachu", "squirtle", "--strategy", "heuristic", "--seed", "42")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, opts.timeout)
	assert.Equal(t, "./bin/battleserver", opts.server)
	assert.Equal(t, "heuristic", client.lastArgs.Strategy)
	require.NotNil(t, client.lastArgs.Seed)
	assert.Equal(t, uint64(42), *client.lastArgs.Seed)

	assert.Contains(t, out, "BATTLE RESULT: Pikachu wins!")
	assert.Contains(t, out, "=== BATTLE LOG ===\nBattle start!\nPikachu used Thunder Punch!\n")
	assert.Contains(t, out, "Strategy: Press the type advantage\nCommentary: Sparks fly!\n")
	assert.Contains(t, out, "Battle battle-1")
}

func TestBattle_SeedOmittedWhenUnset(t *testing.T) {
	client := newFakeClient()
	_, _, err := run(t, client, "", "battle", "pikachu", "squirtle")
	require.NoError(t, err)
	assert.Nil(t, client.lastArgs.Seed)
	assert.Empty(t, client.lastArgs.Strategy)
}

func TestReplay(t *testing.T) {
	client := newFakeClient()
	client.battles["b-9"] = &protocol.BattleReport{ID: "b-9", Draw: true, Turns: 100, BattleLog: []string{"Battle start!"}}

	out, _, err := run(t, client, "", "replay", "b-9")
	require.NoError(t, err)
	assert.Contains(t, out, "BATTLE RESULT: draw after 100 turns")
	assert.NotContains(t, out, "victorious")

	_, _, err = run(t, client, "", "replay", "nope")
	require.Error(t, err)
}

func TestREPL_Session(t *testing.T) {
	client := newFakeClient()
	input := strings.Join([]string{
		"lookup squirtle",
		"lookup missingno",
		"",
		"battle Pikachu vs Squirtle",
		"",
		"replay battle-1",
		"dance",
		"exit",
		"lookup pikachu",
	}, "\n")

	out, _, err := run(t, client, input, "repl")
	require.NoError(t, err)

	assert.Contains(t, out, "  - 'battle charmander vs squirtle'")
	assert.Contains(t, out, "Name: Squirtle (ID: 7)")
	assert.Contains(t, out, "Error: missingno: species not found")
	assert.Contains(t, out, "Press Enter to start the battle...")
	assert.Equal(t, "pikachu", client.lastArgs.Pokemon1, "repl input is lowercased")
	assert.Equal(t, 2, strings.Count(out, "BATTLE RESULT: Pikachu wins!"), "battle then replay")
	assert.Contains(t, out, `Unknown command "dance"`)
	assert.Contains(t, out, "Shutting down client and server.")
	assert.Equal(t, 1, strings.Count(out, "Name: Pikachu (ID: 25)"), "commands after exit are not read")
}

func TestREPL_EndOfInput(t *testing.T) {
	out, _, err := run(t, newFakeClient(), "help\n", "repl")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "You can give commands like:"))
}

func TestDialError(t *testing.T) {
	dial := func(context.Context, *rootOptions) (battleClient, func(), error) {
		return nil, nil, errors.New("spawn failed")
	}
	cmd := newRootCmd(dial)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"lookup", "pikachu"})
	assert.EqualError(t, cmd.Execute(), "spawn failed")
}
