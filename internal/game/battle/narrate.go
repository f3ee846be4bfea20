package battle

import (
	"strconv"
	"strings"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
)

const separator = "=============================="

// effectivenessPhrase returns the narration for a multiplier, or "" for neutral hits.
func effectivenessPhrase(eff float64) string {
	switch {
	case eff == 0:
		return "It had no effect!"
	case eff > 1:
		return "It's super effective! (" + formatMultiplier(eff) + "x)"
	case eff < 1:
		return "It's not very effective... (" + formatMultiplier(eff) + "x)"
	default:
		return ""
	}
}

// formatMultiplier renders 2 as "2" and 0.25 as "0.25".
func formatMultiplier(eff float64) string {
	return strconv.FormatFloat(eff, 'g', -1, 64)
}

func joinDisplay(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = species.DisplayName(n)
	}
	return strings.Join(out, "/")
}

func moveList(moves []species.Move) string {
	if len(moves) == 0 {
		return "none"
	}
	names := make([]string, len(moves))
	for i, m := range moves {
		names[i] = species.DisplayName(m.Name)
	}
	return strings.Join(names, ", ")
}
