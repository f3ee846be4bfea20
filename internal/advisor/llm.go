// Package advisor asks a hosted language model to pick the attacker's move.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/config"
	"github.com/cory-johannsen/pokeduel/internal/game/battle"
)

// ErrNoAPIKey is returned by NewLLM when no API key is configured.
var ErrNoAPIKey = errors.New("advisor: anthropic api key is not configured")

// ErrInvalidAdvice is returned when the model's answer cannot be read as advice.
var ErrInvalidAdvice = errors.New("advisor: invalid advice")

const systemPrompt = "You are a master Pokemon battle strategist and a hype commentator. " +
	"You always answer with a single JSON object and nothing else."

// LLM is a battle.Advisor backed by the Anthropic Messages API.
type LLM struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// NewLLM creates an LLM advisor from cfg.
//
// Precondition: logger must be non-nil.
// Postcondition: returns ErrNoAPIKey when cfg.APIKey is empty.
func NewLLM(cfg config.AdvisorConfig, logger *zap.Logger) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &LLM{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Advise implements battle.Advisor.
func (l *LLM) Advise(ctx context.Context, req battle.AdviceRequest) (battle.Advice, error) {
	msg, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(l.model),
		MaxTokens: l.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(Prompt(req))),
		},
	})
	if err != nil {
		return battle.Advice{}, fmt.Errorf("advisor: messages request: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	l.logger.Debug("advisor answer",
		zap.Int("turn", req.Turn),
		zap.String("attacker", req.Attacker.Name),
		zap.String("model", l.model),
		zap.String("answer", text.String()),
	)
	return ParseAdvice(text.String())
}

type promptMove struct {
	Name          string  `json:"name"`
	Power         int     `json:"power"`
	Type          string  `json:"type"`
	Cost          int     `json:"cost"`
	Effectiveness float64 `json:"effectiveness"`
}

// Prompt renders the battle state as the user message sent to the model.
func Prompt(req battle.AdviceRequest) string {
	moves := make([]promptMove, len(req.Options))
	for i, o := range req.Options {
		moves[i] = promptMove{
			Name:          o.Move.Name,
			Power:         o.Move.Power,
			Type:          o.Move.Type,
			Cost:          o.Move.Power,
			Effectiveness: o.Effectiveness,
		}
	}
	movesJSON, _ := json.MarshalIndent(moves, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Battle State (Turn %d):\n", req.Turn)
	fmt.Fprintf(&b, "- Your Pokemon (Attacker): %s (HP: %d/%d, AP: %d, Types: %s)\n",
		req.Attacker.Name, req.Attacker.HP, req.Attacker.MaxHP, req.Attacker.AP, strings.Join(req.Attacker.Types, ", "))
	fmt.Fprintf(&b, "- Opponent (Defender): %s (HP: %d/%d, Types: %s)\n\n",
		req.Defender.Name, req.Defender.HP, req.Defender.MaxHP, strings.Join(req.Defender.Types, ", "))
	fmt.Fprintf(&b, "Your Available Moves (using a move costs AP equal to its power):\n%s\n\n", movesJSON)
	b.WriteString("Your Task:\n")
	b.WriteString("1. Strategize: choose the best move. Consider type effectiveness, move power, and remaining AP. Your goal is to win the battle.\n")
	b.WriteString("2. Commentate: write a short, exciting, one-sentence commentary for the chosen action.\n\n")
	b.WriteString("Respond in this exact JSON format:\n")
	b.WriteString(`{"chosen_move": "move-name", "strategy": "Your brief explanation for choosing this move.", "commentary": "Your exciting play-by-play commentary for this turn."}`)
	return b.String()
}

type answer struct {
	ChosenMove string `json:"chosen_move"`
	Strategy   string `json:"strategy"`
	Commentary string `json:"commentary"`
}

// ParseAdvice extracts advice from a model answer. Text around the outermost
// JSON object, such as a markdown fence, is ignored.
//
// Postcondition: returns ErrInvalidAdvice unless a JSON object with a
// non-empty chosen_move is found.
func ParseAdvice(text string) (battle.Advice, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return battle.Advice{}, fmt.Errorf("%w: no JSON object in answer", ErrInvalidAdvice)
	}
	var a answer
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return battle.Advice{}, fmt.Errorf("%w: %v", ErrInvalidAdvice, err)
	}
	if strings.TrimSpace(a.ChosenMove) == "" {
		return battle.Advice{}, fmt.Errorf("%w: chosen_move is empty", ErrInvalidAdvice)
	}
	return battle.Advice{Move: a.ChosenMove, Strategy: a.Strategy, Commentary: a.Commentary}, nil
}
