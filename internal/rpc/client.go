package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/config"
	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/protocol"
)

type resourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

type readResourceResult struct {
	Contents []resourceContents `json:"contents"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type callToolResult struct {
	Content           []content       `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// Client exposes the battle server's remote operations over a Conn.
type Client struct {
	conn        *Conn
	callTimeout time.Duration
}

// NewClient wraps a connection that has completed its handshake. A zero callTimeout leaves
// calls bounded only by their context.
func NewClient(conn *Conn, callTimeout time.Duration) *Client {
	return &Client{conn: conn, callTimeout: callTimeout}
}

// Dial spawns the configured battle server and completes the handshake.
//
// Postcondition: Returns a ready Client, or a non-nil error with the child stopped.
func Dial(ctx context.Context, cfg config.TransportConfig, logger *zap.Logger) (*Client, error) {
	conn, err := Spawn(cfg.ServerCommand, cfg.ServerArgs, cfg.MaxFrameBytes, logger)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Handshake(ctx, cfg.ProtocolVersion); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	return NewClient(conn, cfg.CallTimeout), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetPokemon reads the pokemon:// resource for name.
//
// Postcondition: an unknown name returns an error wrapping species.ErrNotFound.
func (c *Client) GetPokemon(ctx context.Context, name string) (*species.Profile, error) {
	var p species.Profile
	if err := c.readResource(ctx, protocol.PokemonURI(name), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Battle invokes the battle tool.
func (c *Client) Battle(ctx context.Context, args protocol.BattleArgs) (*protocol.BattleReport, error) {
	var report protocol.BattleReport
	if err := c.callTool(ctx, protocol.ToolBattle, args, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetBattle reads an archived battle by id.
func (c *Client) GetBattle(ctx context.Context, id string) (*protocol.BattleReport, error) {
	var report protocol.BattleReport
	if err := c.readResource(ctx, protocol.BattleURI(id), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *Client) readResource(ctx context.Context, uri string, v any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var res readResourceResult
	if err := c.conn.Call(ctx, protocol.MethodReadResource, map[string]any{"uri": uri}, &res); err != nil {
		return fmt.Errorf("reading %s: %w", uri, err)
	}
	if len(res.Contents) == 0 {
		return fmt.Errorf("reading %s: empty contents", uri)
	}
	if err := json.Unmarshal([]byte(res.Contents[0].Text), v); err != nil {
		return fmt.Errorf("decoding %s: %w", uri, err)
	}
	return nil
}

func (c *Client) callTool(ctx context.Context, name string, args, v any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var res callToolResult
	params := map[string]any{"name": name, "arguments": args}
	if err := c.conn.Call(ctx, protocol.MethodCallTool, params, &res); err != nil {
		return fmt.Errorf("calling %s: %w", name, err)
	}
	if res.IsError {
		var texts []string
		for _, item := range res.Content {
			if item.Text != "" {
				texts = append(texts, item.Text)
			}
		}
		return &ToolError{Tool: name, Message: strings.Join(texts, "; ")}
	}
	payload := []byte(res.StructuredContent)
	if len(payload) == 0 {
		for _, item := range res.Content {
			if item.Type == "text" {
				payload = []byte(item.Text)
				break
			}
		}
	}
	if len(payload) == 0 {
		return fmt.Errorf("calling %s: empty result", name)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding %s result: %w", name, err)
	}
	return nil
}
