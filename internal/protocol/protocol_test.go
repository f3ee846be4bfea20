package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/pokeduel/internal/protocol"
)

func TestPokemonURI_Normalizes(t *testing.T) {
	assert.Equal(t, "pokemon://pikachu", protocol.PokemonURI("  Pikachu "))
}

func TestParsePokemonURI(t *testing.T) {
	name, err := protocol.ParsePokemonURI("pokemon://mr-mime")
	require.NoError(t, err)
	assert.Equal(t, "mr-mime", name)

	for _, bad := range []string{"battle://x", "pokemon://", "pokemon://a/b", "pikachu"} {
		_, err := protocol.ParsePokemonURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseBattleURI(t *testing.T) {
	id, err := protocol.ParseBattleURI(protocol.BattleURI("abc-123"))
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)

	_, err = protocol.ParseBattleURI("pokemon://abc")
	assert.Error(t, err)
}

func TestProperty_PokemonURIRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[a-z][a-z0-9-]{0,15}`).Draw(rt, "name")
		got, err := protocol.ParsePokemonURI(protocol.PokemonURI(name))
		require.NoError(rt, err)
		assert.Equal(rt, name, got)
	})
}
