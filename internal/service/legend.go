package service

import (
	"github.com/joeblew999/plat-atp/internal/inventory"
)

// LegendLayer is one colour ramp in the legend.
type LegendLayer struct {
	LayerKey string   `json:"layerKey" doc:"Layer key"`
	Species  string   `json:"species" doc:"Species common name"`
	Palette  string   `json:"palette" doc:"Palette name"`
	Stops    []string `json:"stops" doc:"Colour stops from low to high level"`
}

// LegendGroup holds the layers of one type, in stack order.
type LegendGroup struct {
	Type   LayerType     `json:"type" doc:"Layer type"`
	Layers []LegendLayer `json:"layers" doc:"Layers of this type"`
}

// Legend is the shared colour scale for the whole stack.
type Legend struct {
	HasLevel bool          `json:"hasLevel" doc:"Whether any layer reported a level"`
	MaxLevel float64       `json:"maxLevel" doc:"Maximum level across all layers"`
	Projects []string      `json:"projects" doc:"Project codes shown on the map, sorted"`
	Groups   []LegendGroup `json:"groups" doc:"Ramps grouped by layer type; empty groups are omitted"`
	Loading  []string      `json:"loading" doc:"Keys of layers still loading"`
	NoData   []string      `json:"noData" doc:"Keys of layers whose last load had no data"`
	Extent   []float64     `json:"extent,omitempty" doc:"Union of layer extents as [minLon, minLat, maxLon, maxLat]"`
}

// BuildLegend summarizes the stack's aggregates for display.
func BuildLegend(st Stack, agg *Aggregator, palettes *Palettes, inv *inventory.Inventory) Legend {
	lg := Legend{
		Projects: agg.GlobalShownProjects(),
		Loading:  agg.Loading(),
		NoData:   agg.NoData(),
		Groups:   []LegendGroup{},
	}
	lg.MaxLevel, lg.HasLevel = agg.GlobalMaxLevel()
	if b, ok := agg.Extent(); ok {
		lg.Extent = []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	}

	for _, t := range []LayerType{Distribution, Range} {
		g := LegendGroup{Type: t}
		for _, l := range st.Layers {
			if l.Type != t {
				continue
			}
			ll := LegendLayer{LayerKey: l.LayerKey, Species: "Unknown", Palette: l.Palette}
			if e, ok := inv.FindSpecies(l.SpeciesID); ok {
				ll.Species = e.CommonName
			}
			if p, ok := palettes.Get(l.Palette); ok {
				ll.Stops = p.Stops
			}
			g.Layers = append(g.Layers, ll)
		}
		if len(g.Layers) > 0 {
			lg.Groups = append(lg.Groups, g)
		}
	}
	return lg
}
