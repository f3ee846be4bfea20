package species

import (
	"sort"
	"strings"
)

// SelectMoveset picks a competitive moveset from a learnable move pool: the two strongest
// same-type moves, then the strongest moves of other types, then any remaining same-type
// moves, up to MaxMoves. Ineligible and duplicate moves are dropped.
//
// Postcondition: len(result) <= MaxMoves and every move is Eligible.
func SelectMoveset(types []string, pool []Move) []Move {
	own := make(map[string]bool, len(types))
	for _, t := range types {
		own[strings.ToLower(t)] = true
	}

	seen := make(map[string]bool, len(pool))
	var stab, other []Move
	for _, m := range pool {
		if !m.Eligible() || seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		if own[strings.ToLower(m.Type)] {
			stab = append(stab, m)
		} else {
			other = append(other, m)
		}
	}
	byPower(stab)
	byPower(other)

	picked := make([]Move, 0, MaxMoves)
	take := func(from []Move, limit int) []Move {
		for len(from) > 0 && len(picked) < limit {
			picked = append(picked, from[0])
			from = from[1:]
		}
		return from
	}
	stab = take(stab, 2)
	take(other, MaxMoves)
	take(stab, MaxMoves)
	return picked
}

func byPower(moves []Move) {
	sort.SliceStable(moves, func(i, j int) bool {
		if moves[i].Power != moves[j].Power {
			return moves[i].Power > moves[j].Power
		}
		return moves[i].Name < moves[j].Name
	})
}
