package advisor_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/pokeduel/internal/advisor"
	"github.com/cory-johannsen/pokeduel/internal/config"
	"github.com/cory-johannsen/pokeduel/internal/game/battle"
	"github.com/cory-johannsen/pokeduel/internal/game/species"
)

func request() battle.AdviceRequest {
	return battle.AdviceRequest{
		Turn:     4,
		Attacker: battle.Snapshot{Name: "Pikachu", Types: []string{"electric"}, HP: 20, MaxHP: 35, AP: 120},
		Defender: battle.Snapshot{Name: "Gyarados", Types: []string{"water", "flying"}, HP: 95, MaxHP: 95},
		Options: []battle.MoveOption{
			{Move: species.Move{Name: "thunderbolt", Power: 90, Type: "electric", DamageClass: species.Special}, Effectiveness: 4},
			{Move: species.Move{Name: "quick-attack", Power: 40, Type: "normal", DamageClass: species.Physical}, Effectiveness: 1},
		},
	}
}

func TestPrompt_CarriesBattleState(t *testing.T) {
	p := advisor.Prompt(request())
	assert.Contains(t, p, "Turn 4")
	assert.Contains(t, p, "Pikachu (HP: 20/35, AP: 120, Types: electric)")
	assert.Contains(t, p, "Gyarados (HP: 95/95, Types: water, flying)")
	assert.Contains(t, p, `"name": "thunderbolt"`)
	assert.Contains(t, p, `"effectiveness": 4`)
	assert.Contains(t, p, `"cost": 40`)
	assert.Contains(t, p, `"chosen_move"`)
}

func TestParseAdvice(t *testing.T) {
	a, err := advisor.ParseAdvice("```json\n{\"chosen_move\": \"Thunderbolt\", \"strategy\": \"4x\", \"commentary\": \"Zap!\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, battle.Advice{Move: "Thunderbolt", Strategy: "4x", Commentary: "Zap!"}, a)
}

func TestParseAdvice_Invalid(t *testing.T) {
	for _, text := range []string{
		"",
		"I pick thunderbolt",
		`{"chosen_move": ""}`,
		`{"chosen_move": 12}`,
		`{"strategy": "no move"}`,
		`} backwards {`,
	} {
		_, err := advisor.ParseAdvice(text)
		assert.ErrorIs(t, err, advisor.ErrInvalidAdvice, "text %q", text)
	}
}

func TestProperty_ParseAdviceRoundTrips(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		move := rapid.StringMatching(`[a-z][a-z\-]{0,15}`).Draw(rt, "move")
		strategy := rapid.String().Draw(rt, "strategy")
		raw, err := json.Marshal(map[string]string{"chosen_move": move, "strategy": strategy})
		require.NoError(rt, err)
		a, err := advisor.ParseAdvice("answer: " + string(raw))
		require.NoError(rt, err)
		assert.Equal(rt, move, a.Move)
		assert.Equal(rt, strategy, a.Strategy)
	})
}

func TestNewLLM_RequiresKey(t *testing.T) {
	_, err := advisor.NewLLM(config.AdvisorConfig{Model: "m", MaxTokens: 10}, zap.NewNop())
	assert.ErrorIs(t, err, advisor.ErrNoAPIKey)
}

func fakeMessagesAPI(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
			return
		}
		resp := map[string]any{
			"id":            "msg_test",
			"type":          "message",
			"role":          "assistant",
			"model":         "test-model",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": text}},
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 10},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newLLM(t *testing.T, srv *httptest.Server) *advisor.LLM {
	t.Helper()
	l, err := advisor.NewLLM(config.AdvisorConfig{
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 256,
		BaseURL:   srv.URL + "/",
		Timeout:   time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return l
}

func TestLLM_Advise(t *testing.T) {
	srv := fakeMessagesAPI(t, http.StatusOK, `{"chosen_move":"thunderbolt","strategy":"Flying and water both fold to electric.","commentary":"A 4x thunderbolt!"}`)
	a, err := newLLM(t, srv).Advise(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "thunderbolt", a.Move)
	assert.Equal(t, "A 4x thunderbolt!", a.Commentary)
}

func TestLLM_AdviseGarbledAnswer(t *testing.T) {
	srv := fakeMessagesAPI(t, http.StatusOK, "thunderbolt, obviously")
	_, err := newLLM(t, srv).Advise(context.Background(), request())
	assert.ErrorIs(t, err, advisor.ErrInvalidAdvice)
}

func TestLLM_AdviseAPIError(t *testing.T) {
	srv := fakeMessagesAPI(t, http.StatusBadRequest, "")
	_, err := newLLM(t, srv).Advise(context.Background(), request())
	assert.Error(t, err)
}
