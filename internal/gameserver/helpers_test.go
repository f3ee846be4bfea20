package gameserver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/dex"
	"github.com/cory-johannsen/pokeduel/internal/game/battle"
	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/game/typechart"
	"github.com/cory-johannsen/pokeduel/internal/gameserver"
	"github.com/cory-johannsen/pokeduel/internal/storage"
)

func pikachu() *species.Profile {
	return (&species.Profile{
		ID:    25,
		Name:  "pikachu",
		Types: []string{"electric"},
		Stats: species.Stats{HP: 35, Attack: 55, Defense: 40, SpecialAttack: 50, SpecialDefense: 50, Speed: 90},
		Moves: []species.Move{
			{Name: "thunderbolt", Power: 90, Type: "electric", DamageClass: species.Special},
			{Name: "iron-tail", Power: 100, Type: "steel", DamageClass: species.Physical},
			{Name: "quick-attack", Power: 40, Type: "normal", DamageClass: species.Physical},
		},
	}).Normalize()
}

func squirtle() *species.Profile {
	return (&species.Profile{
		ID:    7,
		Name:  "squirtle",
		Types: []string{"water"},
		Stats: species.Stats{HP: 44, Attack: 48, Defense: 65, SpecialAttack: 50, SpecialDefense: 64, Speed: 43},
		Moves: []species.Move{
			{Name: "hydro-pump", Power: 110, Type: "water", DamageClass: species.Special},
			{Name: "bite", Power: 60, Type: "dark", DamageClass: species.Physical},
			{Name: "tackle", Power: 40, Type: "normal", DamageClass: species.Physical},
		},
	}).Normalize()
}

func newDex() *dex.Dex {
	reg := species.NewRegistry()
	reg.Register(pikachu())
	reg.Register(squirtle())
	return dex.New(dex.NewMemoryStore(), reg, nil, zap.NewNop())
}

func cfg() gameserver.SimulatorConfig {
	return gameserver.SimulatorConfig{HeuristicTurnCap: 500, AdvisorTimeout: 2 * time.Second}
}

// newSimulator returns a heuristic-only simulator and its archive.
func newSimulator(t *testing.T) (*gameserver.Simulator, *storage.MemoryArchive) {
	t.Helper()
	archive := storage.NewMemoryArchive()
	return gameserver.NewSimulator(newDex(), archive, typechart.Default(), nil, cfg(), zap.NewNop()), archive
}

// firstOption always picks the first affordable move.
type firstOption struct{}

func (firstOption) Advise(_ context.Context, req battle.AdviceRequest) (battle.Advice, error) {
	return battle.Advice{Move: req.Options[0].Move.Name, Strategy: "lead with " + req.Options[0].Move.Name, Commentary: "Go!"}, nil
}

type brokenArchive struct{ storage.MemoryArchive }

func (*brokenArchive) Save(context.Context, storage.Record) error {
	return errors.New("archive offline")
}
