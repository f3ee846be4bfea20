// Package typechart holds the attacking-type versus defending-type effectiveness table.
package typechart

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed chart.yaml
var defaultChartYAML []byte

// Chart maps an attacking type to the multipliers it applies against defending types.
//
// Invariant: every stored multiplier is one of 0, 0.5, 1, or 2.
// Invariant: a Chart is never mutated after Parse returns it, so it is safe for concurrent use.
type Chart struct {
	entries map[string]map[string]float64
}

var validMultipliers = map[float64]bool{0: true, 0.5: true, 1: true, 2: true}

// Parse decodes a YAML chart of the form `attacking: {defending: multiplier}`.
// Type names are lowercased.
//
// Precondition: data must be a YAML mapping.
// Postcondition: Returns a Chart or an error naming the first invalid entry.
func Parse(data []byte) (*Chart, error) {
	var raw map[string]map[string]float64
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing type chart: %w", err)
	}

	entries := make(map[string]map[string]float64, len(raw))
	for atk, row := range raw {
		atk = normalize(atk)
		if atk == "" {
			return nil, fmt.Errorf("type chart: empty attacking type")
		}
		out := make(map[string]float64, len(row))
		for def, m := range row {
			if !validMultipliers[m] {
				return nil, fmt.Errorf("type chart: %s -> %s has invalid multiplier %v", atk, def, m)
			}
			out[normalize(def)] = m
		}
		entries[atk] = out
	}
	return &Chart{entries: entries}, nil
}

var (
	defaultOnce  sync.Once
	defaultChart *Chart
)

// Default returns the built-in 18-type chart, parsed on first use.
//
// Postcondition: Returns the same non-nil *Chart on every call.
func Default() *Chart {
	defaultOnce.Do(func() {
		c, err := Parse(defaultChartYAML)
		if err != nil {
			panic("typechart: embedded chart is invalid: " + err.Error())
		}
		defaultChart = c
	})
	return defaultChart
}

// Lookup returns the single-pair multiplier for attacking against defending.
// Unknown pairs are neutral.
func (c *Chart) Lookup(attacking, defending string) float64 {
	row, ok := c.entries[normalize(attacking)]
	if !ok {
		return 1
	}
	m, ok := row[normalize(defending)]
	if !ok {
		return 1
	}
	return m
}

// Multiplier returns the product of the per-type multipliers of attacking against each
// of the defender's types.
//
// Postcondition: Returns 1 for an empty defending list; returns 0 if any factor is 0.
func (c *Chart) Multiplier(attacking string, defending []string) float64 {
	m := 1.0
	for _, d := range defending {
		m *= c.Lookup(attacking, d)
	}
	return m
}

// Types returns the sorted attacking types known to the chart.
func (c *Chart) Types() []string {
	out := make([]string, 0, len(c.entries))
	for t := range c.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Multiplier is shorthand for Default().Multiplier.
func Multiplier(attacking string, defending []string) float64 {
	return Default().Multiplier(attacking, defending)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
