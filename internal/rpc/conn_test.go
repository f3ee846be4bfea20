package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/protocol"
	"github.com/cory-johannsen/pokeduel/internal/rpc"
	"github.com/cory-johannsen/pokeduel/internal/testutil"
)

const wait = 2 * time.Second

// handshake returns a Ready connection and the peer playing the server.
func handshake(t *testing.T) (*rpc.Conn, *testutil.Peer) {
	t.Helper()
	peer, end := testutil.NewPeer(t)
	conn := rpc.NewConn(end, 0, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := conn.Handshake(context.Background(), "")
		done <- err
	}()
	init := peer.ReadFrame(wait)
	peer.Reply(init, map[string]any{
		"protocolVersion": protocol.Version,
		"serverInfo":      map[string]any{"name": "fake", "version": "0"},
		"capabilities":    map[string]any{},
	})
	peer.ReadFrame(wait)
	require.NoError(t, <-done)
	return conn, peer
}

func callAsync(ctx context.Context, conn *rpc.Conn, method string, params, result any) <-chan error {
	done := make(chan error, 1)
	go func() { done <- conn.Call(ctx, method, params, result) }()
	return done
}

func TestHandshake_Sequence(t *testing.T) {
	peer, end := testutil.NewPeer(t)
	conn := rpc.NewConn(end, 0, zap.NewNop())
	assert.Equal(t, rpc.StateDisconnected, conn.State())

	type outcome struct {
		res *rpc.InitializeResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := conn.Handshake(context.Background(), "2024-11-05")
		done <- outcome{res, err}
	}()

	init := peer.ReadFrame(wait)
	assert.Equal(t, "2.0", init["jsonrpc"])
	assert.Equal(t, float64(1), init["id"])
	assert.Equal(t, protocol.MethodInitialize, init["method"])
	params := init["params"].(map[string]any)
	assert.Equal(t, "2024-11-05", params["protocolVersion"])
	assert.Equal(t, protocol.ClientName, params["clientInfo"].(map[string]any)["name"])
	assert.Contains(t, params["capabilities"], "resources")

	peer.Reply(init, map[string]any{
		"protocolVersion": "2024-11-05",
		"serverInfo":      map[string]any{"name": "pokemon-battle", "version": "1.0.0"},
	})
	note := peer.ReadFrame(wait)
	assert.Equal(t, protocol.MethodInitialized, note["method"])
	assert.NotContains(t, note, "id")

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, "pokemon-battle", out.res.ServerInfo.Name)
	assert.Equal(t, rpc.StateReady, conn.State())
}

func TestHandshake_RejectedClosesConnection(t *testing.T) {
	peer, end := testutil.NewPeer(t)
	conn := rpc.NewConn(end, 0, zap.NewNop())
	done := make(chan error, 1)
	go func() {
		_, err := conn.Handshake(context.Background(), "")
		done <- err
	}()
	init := peer.ReadFrame(wait)
	peer.SendJSON(map[string]any{"jsonrpc": "2.0", "id": init["id"], "error": map[string]any{"code": -32602, "message": "bad version"}})

	err := <-done
	var remote *rpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, -32602, remote.Code)
	assert.Equal(t, rpc.StateClosed, conn.State())
}

func TestCall_BeforeHandshake(t *testing.T) {
	_, end := testutil.NewPeer(t)
	conn := rpc.NewConn(end, 0, zap.NewNop())
	err := conn.Call(context.Background(), "tools/list", nil, nil)
	assert.ErrorIs(t, err, rpc.ErrNotReady)
}

func TestCall_IDsIncreaseAndResultDecodes(t *testing.T) {
	conn, peer := handshake(t)

	for want := 2; want <= 4; want++ {
		var got struct {
			Echo string `json:"echo"`
		}
		done := callAsync(context.Background(), conn, "echo", map[string]any{"n": want}, &got)
		frame := peer.ReadFrame(wait)
		assert.Equal(t, float64(want), frame["id"])
		assert.Equal(t, "echo", frame["method"])
		peer.Reply(frame, map[string]any{"echo": "ok"})
		require.NoError(t, <-done)
		assert.Equal(t, "ok", got.Echo)
		assert.Equal(t, rpc.StateReady, conn.State())
	}
}

func TestCall_MismatchedIDIsProtocolViolation(t *testing.T) {
	conn, peer := handshake(t)

	done := callAsync(context.Background(), conn, "echo", nil, nil)
	frame := peer.ReadFrame(wait)
	peer.SendJSON(map[string]any{"jsonrpc": "2.0", "id": frame["id"].(float64) + 7, "result": map[string]any{}})

	err := <-done
	assert.ErrorIs(t, err, rpc.ErrProtocolViolation)
	var perr *rpc.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, int64(2), perr.ID)
	assert.Equal(t, rpc.StateClosed, conn.State())

	assert.ErrorIs(t, conn.Call(context.Background(), "echo", nil, nil), rpc.ErrClosed)
}

func TestCall_SkipsNotifications(t *testing.T) {
	conn, peer := handshake(t)

	var got map[string]any
	done := callAsync(context.Background(), conn, "echo", nil, &got)
	frame := peer.ReadFrame(wait)
	peer.SendJSON(map[string]any{"jsonrpc": "2.0", "method": "notifications/message", "params": map[string]any{"level": "info"}})
	peer.Reply(frame, map[string]any{"ok": true})

	require.NoError(t, <-done)
	assert.Equal(t, true, got["ok"])
}

func TestCall_RemoteNotFoundKeepsConnection(t *testing.T) {
	conn, peer := handshake(t)

	done := callAsync(context.Background(), conn, protocol.MethodReadResource, map[string]any{"uri": "pokemon://missingno"}, nil)
	frame := peer.ReadFrame(wait)
	peer.SendJSON(map[string]any{"jsonrpc": "2.0", "id": frame["id"], "error": map[string]any{"code": protocol.CodeResourceNotFound, "message": "Resource not found"}})

	err := <-done
	assert.ErrorIs(t, err, species.ErrNotFound)
	assert.NotErrorIs(t, err, rpc.ErrProtocolViolation)
	assert.Equal(t, rpc.StateReady, conn.State())
}

func TestCall_AcceptsFrameWithoutVersion(t *testing.T) {
	conn, peer := handshake(t)

	var got struct {
		Echo string `json:"echo"`
	}
	done := callAsync(context.Background(), conn, "echo", nil, &got)
	frame := peer.ReadFrame(wait)
	peer.SendJSON(map[string]any{"id": frame["id"], "result": map[string]any{"echo": "ok"}})

	require.NoError(t, <-done)
	assert.Equal(t, "ok", got.Echo)
	assert.Equal(t, rpc.StateReady, conn.State())
}

func TestCall_RejectsWrongVersion(t *testing.T) {
	conn, peer := handshake(t)

	done := callAsync(context.Background(), conn, "echo", nil, nil)
	frame := peer.ReadFrame(wait)
	peer.SendJSON(map[string]any{"jsonrpc": "1.0", "id": frame["id"], "result": map[string]any{}})

	assert.ErrorIs(t, <-done, rpc.ErrProtocolViolation)
	assert.Equal(t, rpc.StateClosed, conn.State())
}

func TestCall_ReplyNeedsExactlyOneOfResultOrError(t *testing.T) {
	tests := []struct {
		name  string
		reply func(id any) map[string]any
	}{
		{"neither", func(id any) map[string]any {
			return map[string]any{"jsonrpc": "2.0", "id": id}
		}},
		{"both", func(id any) map[string]any {
			return map[string]any{"jsonrpc": "2.0", "id": id, "result": map[string]any{}, "error": map[string]any{"code": -32603, "message": "boom"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, peer := handshake(t)

			done := callAsync(context.Background(), conn, "echo", nil, nil)
			frame := peer.ReadFrame(wait)
			peer.SendJSON(tt.reply(frame["id"]))

			err := <-done
			assert.ErrorIs(t, err, rpc.ErrProtocolViolation)
			assert.Equal(t, rpc.StateClosed, conn.State())
		})
	}
}

func TestCall_TruncatedFrame(t *testing.T) {
	conn, peer := handshake(t)

	done := callAsync(context.Background(), conn, "echo", nil, nil)
	peer.ReadFrame(wait)
	peer.SendRaw(`{"jsonrpc":"2.0","id":2,"result":`)
	peer.Close()

	err := <-done
	assert.ErrorIs(t, err, rpc.ErrProtocolViolation)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, rpc.StateClosed, conn.State())
}

func TestCall_MalformedFrame(t *testing.T) {
	conn, peer := handshake(t)

	done := callAsync(context.Background(), conn, "echo", nil, nil)
	peer.ReadFrame(wait)
	peer.Send(`not json`)
	assert.ErrorIs(t, <-done, rpc.ErrProtocolViolation)
}

func TestCall_FrameTooLarge(t *testing.T) {
	peer, end := testutil.NewPeer(t)
	conn := rpc.NewConn(end, 128, zap.NewNop())
	done := make(chan error, 1)
	go func() {
		_, err := conn.Handshake(context.Background(), "")
		done <- err
	}()
	init := peer.ReadFrame(wait)
	peer.Reply(init, map[string]any{"padding": strings.Repeat("x", 512)})
	assert.ErrorIs(t, <-done, rpc.ErrProtocolViolation)
}

func TestCall_ContextDeadlineClosesConnection(t *testing.T) {
	conn, peer := handshake(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	done := callAsync(ctx, conn, "slow", nil, nil)
	peer.ReadFrame(wait)

	err := <-done
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, rpc.StateClosed, conn.State())
	assert.ErrorIs(t, conn.Call(context.Background(), "echo", nil, nil), rpc.ErrClosed)
}

func TestProperty_ResponsesMatchTheirRequest(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		conn, peer := handshake(t)
		n := rapid.IntRange(1, 6).Draw(rt, "calls")
		for i := 0; i < n; i++ {
			var got struct {
				ID int64 `json:"id"`
			}
			done := callAsync(context.Background(), conn, "echo", nil, &got)
			frame := peer.ReadFrame(wait)
			peer.Reply(frame, map[string]any{"id": frame["id"]})
			require.NoError(rt, <-done)
			assert.Equal(rt, int64(i+2), got.ID)
		}
		_ = conn.Close()
	})
}

func TestSpawn_EchoProcess(t *testing.T) {
	cat, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	conn, err := rpc.Spawn(cat, nil, 0, zap.NewNop())
	require.NoError(t, err)
	defer conn.Close()

	// cat echoes each request back, so every frame answers itself.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = conn.Handshake(ctx, "")
	require.NoError(t, err)

	var echoed json.RawMessage
	require.NoError(t, conn.Call(ctx, "ping", nil, &echoed))
	assert.Empty(t, echoed)
	require.NoError(t, conn.Close())
	assert.True(t, errors.Is(conn.Call(ctx, "ping", nil, nil), rpc.ErrClosed))
}

func TestSpawn_RequiresCommand(t *testing.T) {
	_, err := rpc.Spawn("", nil, 0, zap.NewNop())
	assert.Error(t, err)
}
