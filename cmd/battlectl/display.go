package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/protocol"
)

func printProfile(out io.Writer, p *species.Profile) {
	fmt.Fprintln(out, "\n--- Pokédex Entry ---")
	fmt.Fprintf(out, "Name: %s (ID: %d)\n", p.DisplayName(), p.ID)
	if p.SpriteURL != "" {
		fmt.Fprintf(out, "Sprite: %s\n", p.SpriteURL)
	}
	if len(p.Evolution) > 0 {
		names := make([]string, len(p.Evolution))
		for i, n := range p.Evolution {
			names[i] = species.DisplayName(n)
		}
		fmt.Fprintf(out, "Evolution Line: %s\n", strings.Join(names, " -> "))
	}

	fmt.Fprintln(out, "\nTypes:")
	for _, t := range p.Types {
		fmt.Fprintf(out, "  - %s\n", species.DisplayName(t))
	}

	fmt.Fprintln(out, "\nBase Stats:")
	stats := []struct {
		name  string
		value int
	}{
		{"HP", p.Stats.HP},
		{"Attack", p.Stats.Attack},
		{"Defense", p.Stats.Defense},
		{"Special Attack", p.Stats.SpecialAttack},
		{"Special Defense", p.Stats.SpecialDefense},
		{"Speed", p.Stats.Speed},
	}
	for _, s := range stats {
		fmt.Fprintf(out, "  - %s: %d\n", s.name, s.value)
	}

	if len(p.Abilities) > 0 {
		fmt.Fprintln(out, "\nAbilities:")
		for _, a := range p.Abilities {
			hidden := ""
			if a.Hidden {
				hidden = " (Hidden)"
			}
			fmt.Fprintf(out, "  - %s%s\n", species.DisplayName(a.Name), hidden)
		}
	}

	fmt.Fprintln(out, "\nMoves:")
	for _, m := range p.Moves {
		fmt.Fprintf(out, "  - %s (Power: %d, Type: %s, Class: %s)\n",
			species.DisplayName(m.Name), m.Power, species.DisplayName(m.Type), species.DisplayName(string(m.DamageClass)))
	}
	fmt.Fprintln(out, "---------------------")
}

// printReport renders the battle log and, for advised battles, the commentary read in
// rationale/commentary pairs.
func printReport(out io.Writer, r *protocol.BattleReport) {
	if r.Draw {
		fmt.Fprintf(out, "\nBATTLE RESULT: draw after %d turns\n\n", r.Turns)
	} else {
		fmt.Fprintf(out, "\n🏆 BATTLE RESULT: %s wins! 🏆\n\n", r.Winner)
	}

	fmt.Fprintln(out, "=== BATTLE LOG ===")
	for _, line := range r.BattleLog {
		fmt.Fprintln(out, line)
	}

	if len(r.CommentaryLog) > 0 {
		fmt.Fprintln(out, "\n=== COMMENTARY ===")
		for i := 0; i+1 < len(r.CommentaryLog); i += 2 {
			fmt.Fprintf(out, "Strategy: %s\n", r.CommentaryLog[i])
			fmt.Fprintf(out, "Commentary: %s\n", r.CommentaryLog[i+1])
		}
	}

	if !r.Draw {
		fmt.Fprintf(out, "\n🎉 %s is victorious! 🎉\n", r.Winner)
	}
	fmt.Fprintf(out, "Battle %s (strategy %s, seed %d)\n", r.ID, r.Strategy, r.Seed)
}
