package service

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReverseSuffix marks a reversed palette name.
const ReverseSuffix = "_r"

//go:embed palettes.yaml
var palettesYAML []byte

// Palette is a named colour ramp.
type Palette struct {
	Name  string   `yaml:"name" json:"name" doc:"Palette name"`
	Stops []string `yaml:"stops" json:"stops" doc:"Colour stops from low to high level"`
}

// Palettes is the ordered palette table. Only base ramps are stored; the
// reversed variant of each is derived on request.
type Palettes struct {
	order []string
	byKey map[string]Palette
}

// LoadPalettes decodes a palette table from YAML.
func LoadPalettes(data []byte) (*Palettes, error) {
	var doc struct {
		Palettes []Palette `yaml:"palettes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding palettes: %w", err)
	}
	p := &Palettes{byKey: make(map[string]Palette, len(doc.Palettes))}
	for _, pal := range doc.Palettes {
		if pal.Name == "" || strings.HasSuffix(pal.Name, ReverseSuffix) {
			return nil, fmt.Errorf("invalid palette name %q", pal.Name)
		}
		if len(pal.Stops) < 2 {
			return nil, fmt.Errorf("palette %q needs at least two stops", pal.Name)
		}
		if _, dup := p.byKey[pal.Name]; dup {
			return nil, fmt.Errorf("duplicate palette %q", pal.Name)
		}
		p.order = append(p.order, pal.Name)
		p.byKey[pal.Name] = pal
	}
	if len(p.order) == 0 {
		return nil, fmt.Errorf("palette table is empty")
	}
	return p, nil
}

// DefaultPalettes returns the built-in palette table.
func DefaultPalettes() *Palettes {
	p, err := LoadPalettes(palettesYAML)
	if err != nil {
		panic(err)
	}
	return p
}

// Names returns the base palette names in table order.
func (p *Palettes) Names() []string {
	return slices.Clone(p.order)
}

// Has reports whether name, reversed or not, is in the table.
func (p *Palettes) Has(name string) bool {
	_, ok := p.byKey[strings.TrimSuffix(name, ReverseSuffix)]
	return ok
}

// CanInvert reports whether the invert control applies to name.
func (p *Palettes) CanInvert(name string) bool {
	return p.Has(name)
}

// Invert toggles the reverse suffix.
func (p *Palettes) Invert(name string) string {
	if base, ok := strings.CutSuffix(name, ReverseSuffix); ok {
		return base
	}
	return name + ReverseSuffix
}

// Get returns the palette for name with stops reversed for _r names.
func (p *Palettes) Get(name string) (Palette, bool) {
	base, reversed := strings.CutSuffix(name, ReverseSuffix)
	pal, ok := p.byKey[base]
	if !ok {
		return Palette{}, false
	}
	stops := slices.Clone(pal.Stops)
	if reversed {
		slices.Reverse(stops)
	}
	return Palette{Name: name, Stops: stops}, true
}

// Pick returns a random palette name not used by any of the given layers.
// ok is false when every palette is in use.
func (p *Palettes) Pick(layers []LayerConfig, choose Chooser) (name string, ok bool) {
	used := make(map[string]bool, len(layers))
	for _, l := range layers {
		used[l.Palette] = true
	}
	var free []string
	for _, name := range p.order {
		if !used[name] {
			free = append(free, name)
		}
	}
	if len(free) == 0 {
		return "", false
	}
	return free[choose(len(free))], true
}
