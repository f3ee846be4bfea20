package species

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// speciesFile is the on-disk YAML shape of a local dex entry.
type speciesFile struct {
	ID        int       `yaml:"id"`
	Name      string    `yaml:"name"`
	Types     []string  `yaml:"types"`
	Stats     Stats     `yaml:"stats"`
	Abilities []Ability `yaml:"abilities"`
	SpriteURL string    `yaml:"sprite_url"`
	Evolution []string  `yaml:"evolution"`
	Learnset  []Move    `yaml:"learnset"`
}

// Registry holds locally defined species keyed by lowercase name.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*Profile)}
}

// Register adds p, overwriting any existing entry with the same name.
//
// Precondition: p must be normalized.
func (r *Registry) Register(p *Profile) {
	r.profiles[p.Name] = p
}

// Get returns the profile for name, or (nil, false).
func (r *Registry) Get(name string) (*Profile, bool) {
	p, ok := r.profiles[NormalizeName(name)]
	return p, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered species.
func (r *Registry) Len() int {
	return len(r.profiles)
}

// ParseProfile decodes one YAML species entry and curates its learnset into a moveset.
//
// Postcondition: Returns a normalized, valid Profile or an error.
func ParseProfile(data []byte) (*Profile, error) {
	var f speciesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	p := (&Profile{
		ID:        f.ID,
		Name:      f.Name,
		Types:     f.Types,
		Stats:     f.Stats,
		Abilities: f.Abilities,
		SpriteURL: f.SpriteURL,
		Evolution: f.Evolution,
		Moves:     SelectMoveset(f.Types, f.Learnset),
	}).Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadDirectory reads every *.yaml file in dir as a species entry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a populated Registry, or an error naming the first bad file.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading species dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		p, err := ParseProfile(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		reg.Register(p)
	}
	return reg, nil
}
