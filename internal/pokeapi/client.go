// Package pokeapi fetches species from the public PokeAPI REST service.
package pokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/pokeduel/internal/config"
	"github.com/cory-johannsen/pokeduel/internal/game/species"
)

// Client fetches a species profile by name.
type Client struct {
	baseURL  string
	http     *http.Client
	parallel int
	logger   *zap.Logger
}

// NewClient creates a Client from cfg.
//
// Precondition: cfg.BaseURL is an absolute URL; logger must be non-nil.
func NewClient(cfg config.PokeAPIConfig, logger *zap.Logger) *Client {
	parallel := cfg.MaxMoveFetches
	if parallel < 1 {
		parallel = 1
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		parallel: parallel,
		logger:   logger,
	}
}

type namedRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type pokemonDoc struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Types []struct {
		Slot int      `json:"slot"`
		Type namedRef `json:"type"`
	} `json:"types"`
	Stats []struct {
		BaseStat int      `json:"base_stat"`
		Stat     namedRef `json:"stat"`
	} `json:"stats"`
	Abilities []struct {
		Ability  namedRef `json:"ability"`
		IsHidden bool     `json:"is_hidden"`
	} `json:"abilities"`
	Moves []struct {
		Move namedRef `json:"move"`
	} `json:"moves"`
	Sprites struct {
		FrontDefault string `json:"front_default"`
	} `json:"sprites"`
	Species namedRef `json:"species"`
}

type moveDoc struct {
	Name        string   `json:"name"`
	Power       *int     `json:"power"`
	Type        namedRef `json:"type"`
	DamageClass namedRef `json:"damage_class"`
}

type speciesDoc struct {
	EvolutionChain struct {
		URL string `json:"url"`
	} `json:"evolution_chain"`
}

type chainLink struct {
	Species   namedRef    `json:"species"`
	EvolvesTo []chainLink `json:"evolves_to"`
}

type evolutionDoc struct {
	Chain chainLink `json:"chain"`
}

// Fetch retrieves name from PokeAPI, resolves its learnable moves concurrently,
// and returns a profile with a competitive moveset.
//
// Postcondition: returns an error wrapping species.ErrNotFound on a 404.
// Individual move lookups that fail are skipped; a missing evolution chain
// leaves Evolution empty.
func (c *Client) Fetch(ctx context.Context, name string) (*species.Profile, error) {
	name = species.NormalizeName(name)
	var doc pokemonDoc
	if err := c.getJSON(ctx, c.baseURL+"/pokemon/"+url.PathEscape(name), &doc); err != nil {
		if errors.Is(err, species.ErrNotFound) {
			return nil, fmt.Errorf("pokeapi: %q: %w", name, species.ErrNotFound)
		}
		return nil, fmt.Errorf("pokeapi: fetching %q: %w", name, err)
	}

	p := &species.Profile{
		ID:        doc.ID,
		Name:      doc.Name,
		SpriteURL: doc.Sprites.FrontDefault,
	}
	for _, t := range doc.Types {
		p.Types = append(p.Types, t.Type.Name)
	}
	for _, s := range doc.Stats {
		setStat(&p.Stats, s.Stat.Name, s.BaseStat)
	}
	for _, a := range doc.Abilities {
		p.Abilities = append(p.Abilities, species.Ability{Name: a.Ability.Name, Hidden: a.IsHidden})
	}

	pool, err := c.fetchMoves(ctx, doc)
	if err != nil {
		return nil, err
	}
	p.Moves = species.SelectMoveset(p.Types, pool)
	p.Evolution = c.fetchEvolution(ctx, doc.Species.URL)

	out := p.Normalize()
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("pokeapi: %w", err)
	}
	return out, nil
}

// fetchMoves resolves every learnable move with at most c.parallel requests in flight.
func (c *Client) fetchMoves(ctx context.Context, doc pokemonDoc) ([]species.Move, error) {
	moves := make([]*species.Move, len(doc.Moves))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, ref := range doc.Moves {
		g.Go(func() error {
			var md moveDoc
			if err := c.getJSON(gctx, ref.Move.URL, &md); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("pokeapi: skipping move",
					zap.String("pokemon", doc.Name),
					zap.String("move", ref.Move.Name),
					zap.Error(err),
				)
				return nil
			}
			if md.Power == nil {
				return nil
			}
			moves[i] = &species.Move{
				Name:        md.Name,
				Power:       *md.Power,
				Type:        md.Type.Name,
				DamageClass: species.DamageClass(md.DamageClass.Name),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pokeapi: fetching moves for %q: %w", doc.Name, err)
	}

	pool := make([]species.Move, 0, len(moves))
	for _, m := range moves {
		if m != nil {
			pool = append(pool, *m)
		}
	}
	return pool, nil
}

func (c *Client) fetchEvolution(ctx context.Context, speciesURL string) []string {
	if speciesURL == "" {
		return nil
	}
	var sd speciesDoc
	if err := c.getJSON(ctx, speciesURL, &sd); err != nil || sd.EvolutionChain.URL == "" {
		c.logger.Warn("pokeapi: no species data", zap.String("url", speciesURL), zap.Error(err))
		return nil
	}
	var ed evolutionDoc
	if err := c.getJSON(ctx, sd.EvolutionChain.URL, &ed); err != nil {
		c.logger.Warn("pokeapi: no evolution chain", zap.String("url", sd.EvolutionChain.URL), zap.Error(err))
		return nil
	}
	var chain []string
	for link := &ed.Chain; link != nil && link.Species.Name != ""; {
		chain = append(chain, link.Species.Name)
		if len(link.EvolvesTo) == 0 {
			break
		}
		link = &link.EvolvesTo[0]
	}
	return chain
}

func setStat(s *species.Stats, name string, v int) {
	switch name {
	case "hp":
		s.HP = v
	case "attack":
		s.Attack = v
	case "defense":
		s.Defense = v
	case "special-attack":
		s.SpecialAttack = v
	case "special-defense":
		s.SpecialDefense = v
	case "speed":
		s.Speed = v
	}
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return species.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", rawURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}
