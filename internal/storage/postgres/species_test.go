package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/storage/postgres"
	"github.com/cory-johannsen/pokeduel/internal/testutil"
)

func repo(t *testing.T) *postgres.SpeciesRepository {
	t.Helper()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return postgres.NewSpeciesRepository(pc.RawPool)
}

func pikachu() *species.Profile {
	return (&species.Profile{
		ID:        25,
		Name:      "pikachu",
		Types:     []string{"electric"},
		Stats:     species.Stats{HP: 35, Attack: 55, Defense: 40, SpecialAttack: 50, SpecialDefense: 50, Speed: 90},
		Abilities: []species.Ability{{Name: "static"}, {Name: "lightning-rod", Hidden: true}},
		SpriteURL: "https://img/25.png",
		Evolution: []string{"pichu", "pikachu", "raichu"},
		Moves: []species.Move{
			{Name: "thunderbolt", Power: 90, Type: "electric", DamageClass: species.Special},
			{Name: "iron-tail", Power: 100, Type: "steel", DamageClass: species.Physical},
		},
	}).Normalize()
}

func TestSpeciesRepository_RoundTrip(t *testing.T) {
	r := repo(t)
	ctx := context.Background()

	_, err := r.Get(ctx, "pikachu")
	assert.ErrorIs(t, err, species.ErrNotFound)

	require.NoError(t, r.Put(ctx, pikachu()))
	got, err := r.Get(ctx, "Pikachu")
	require.NoError(t, err)
	assert.Equal(t, pikachu(), got)

	updated := pikachu()
	updated.Moves = updated.Moves[:1]
	updated.Abilities = nil
	require.NoError(t, r.Put(ctx, updated))
	got, err = r.Get(ctx, "pikachu")
	require.NoError(t, err)
	assert.Len(t, got.Moves, 1)
	assert.Empty(t, got.Abilities)
}

func TestMigrateUp_Idempotent(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	require.NoError(t, postgres.MigrateUp(pc.DSN()))
	require.NoError(t, postgres.MigrateUp(pc.DSN()))
}

func TestPool_ReadyRequiresSchema(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	ctx := context.Background()

	assert.ErrorIs(t, pc.Pool.Ready(ctx, 0), postgres.ErrSchemaMissing)

	pc.ApplyMigrations(t)
	assert.NoError(t, pc.Pool.Ready(ctx, 5*time.Second))
}
