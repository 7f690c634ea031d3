package service

import (
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/upstream"
)

// RawFeature is one rendered feature under the pointer. Source is the layer
// key of the map source that drew it.
type RawFeature struct {
	Source     string         `json:"source" doc:"Layer key of the rendering source"`
	Properties map[string]any `json:"properties,omitempty" doc:"Raw feature properties"`
}

// HoverLayer pairs a hovered feature with the layer that drew it.
type HoverLayer struct {
	LayerKey   string         `json:"layerKey" doc:"Layer key"`
	Layer      LayerConfig    `json:"layer" doc:"Layer configuration"`
	Properties map[string]any `json:"properties" doc:"Raw feature properties"`
}

// Hover is the resolved pointer state. The zero value means nothing has
// been computed yet; Empty means the pointer is over no layer.
type Hover struct {
	Computed bool         `json:"computed" doc:"A pointer event has been resolved"`
	Empty    bool         `json:"empty" doc:"No layer feature under the pointer"`
	Location orb.Point    `json:"location" doc:"Pointer location as [lon, lat]"`
	Layers   []HoverLayer `json:"layers" doc:"One entry per layer, in rendering order"`
}

// dedupeBySource keeps the first feature of each source, in order.
func dedupeBySource(features []RawFeature) []RawFeature {
	seen := make(map[string]bool, len(features))
	out := make([]RawFeature, 0, len(features))
	for _, f := range features {
		if seen[f.Source] {
			continue
		}
		seen[f.Source] = true
		out = append(out, f)
	}
	return out
}

// ResolveHover maps the features under the pointer to stack layers. Only
// the first feature per source is kept; features from sources that match no
// layer are dropped.
func ResolveHover(loc orb.Point, features []RawFeature, layers []LayerConfig) Hover {
	h := Hover{Computed: true, Location: loc, Layers: []HoverLayer{}}
	byKey := make(map[string]LayerConfig, len(layers))
	for _, l := range layers {
		byKey[l.LayerKey] = l
	}
	for _, f := range dedupeBySource(features) {
		l, ok := byKey[f.Source]
		if !ok {
			continue
		}
		h.Layers = append(h.Layers, HoverLayer{LayerKey: l.LayerKey, Layer: l, Properties: f.Properties})
	}
	h.Empty = len(h.Layers) == 0
	return h
}

// ClickProjects returns the de-duplicated project codes of the clicked
// features, in first-seen order.
func ClickProjects(features []RawFeature) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, f := range dedupeBySource(features) {
		for _, c := range upstream.ProjectCodes(geojson.Properties(f.Properties)) {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// MonthLabel is the popup label for a month.
func MonthLabel(m inventory.Period) string {
	if m.IsAll() || m.Int() < 1 || m.Int() > 12 {
		return "All Months"
	}
	return time.Month(m.Int()).String()[:3]
}

// FormatLevel prints whole levels as integers and others with two decimals.
func FormatLevel(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Highlight is the legend position of level on a 1..maxLevel scale, clamped to
// [0, 1].
func Highlight(level, maxLevel float64) float64 {
	if maxLevel <= 0 {
		return 0
	}
	return math.Min(1, math.Max(0, (level-1)/maxLevel))
}

// PopupRow is one line of the hover popup.
type PopupRow struct {
	LayerKey   string   `json:"layerKey" doc:"Layer key"`
	Species    string   `json:"species" doc:"Species common name"`
	Project    string   `json:"project" doc:"Project code"`
	Year       string   `json:"year" doc:"Year label"`
	Month      string   `json:"month" doc:"Month label"`
	Level      string   `json:"level,omitempty" doc:"Formatted level"`
	Highlight  *float64 `json:"highlight,omitempty" doc:"Legend swatch position (0-1)"`
	Palette    string   `json:"palette" doc:"Layer palette"`
	ProjectIDs []string `json:"projectCodes,omitempty" doc:"Projects contributing to the feature"`
}

// Popup builds the popup rows for a hover, scaled against maxLevel.
func Popup(h Hover, inv *inventory.Inventory, maxLevel float64, hasMax bool) []PopupRow {
	rows := make([]PopupRow, 0, len(h.Layers))
	for _, hl := range h.Layers {
		row := PopupRow{
			LayerKey:   hl.LayerKey,
			Species:    "Unknown",
			Project:    hl.Layer.Project,
			Year:       hl.Layer.Year.String(),
			Month:      MonthLabel(hl.Layer.Month),
			Palette:    hl.Layer.Palette,
			ProjectIDs: upstream.ProjectCodes(geojson.Properties(hl.Properties)),
		}
		if e, ok := inv.FindSpecies(hl.Layer.SpeciesID); ok {
			row.Species = e.CommonName
		}
		if lvl, ok := upstream.Level(geojson.Properties(hl.Properties)); ok {
			row.Level = FormatLevel(lvl)
			if hasMax {
				hi := Highlight(lvl, maxLevel)
				row.Highlight = &hi
			}
		}
		rows = append(rows, row)
	}
	return rows
}
