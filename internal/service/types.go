// Package service contains the layer stack logic for the species viewer:
// the stack manager, palette table, aggregation of per-layer load results,
// hover resolution and the loader that fetches layer data.
package service

import (
	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/resolve"
	"github.com/joeblew999/plat-atp/internal/upstream"
)

// MaxLayers is the most layers a stack may hold.
const MaxLayers = 5

// DefaultOpacity applies when a layer carries no opacity.
const DefaultOpacity = 50

// LayerType is the kind of data a layer shows.
type LayerType string

const (
	Distribution LayerType = "distribution"
	Range        LayerType = "range"
)

// Valid reports whether t is a known layer type.
func (t LayerType) Valid() bool {
	return t == Distribution || t == Range
}

// LayerConfig is one stacked map layer.
type LayerConfig struct {
	LayerKey  string           `json:"layerKey" doc:"Stable unique layer key" example:"oo-3f1c9a2e"`
	SpeciesID int              `json:"aphiaId" doc:"Species AphiaID" example:"105793"`
	Project   string           `json:"project" doc:"Project code, or _ALL for every project" example:"_ALL"`
	Year      inventory.Period `json:"year" doc:"Year, or all"`
	Month     inventory.Period `json:"month" doc:"Month 1-12, or all"`
	Palette   string           `json:"palette" doc:"Palette name; a _r suffix reverses it" example:"viridis"`
	Opacity   int              `json:"opacity" minimum:"0" maximum:"100" doc:"Layer opacity (0-100)" example:"50"`
	Type      LayerType        `json:"type" enum:"distribution,range" doc:"Layer data type" example:"distribution"`
}

// Selection returns the availability-constrained fields.
func (l LayerConfig) Selection() resolve.Selection {
	return resolve.Selection{SpeciesID: l.SpeciesID, Project: l.Project, Year: l.Year, Month: l.Month}
}

func (l LayerConfig) withSelection(sel resolve.Selection) LayerConfig {
	l.SpeciesID, l.Project, l.Year, l.Month = sel.SpeciesID, sel.Project, sel.Year, sel.Month
	return l
}

// Query returns the upstream request for this layer's data.
func (l LayerConfig) Query() upstream.LayerQuery {
	return upstream.LayerQuery{
		SpeciesID: l.SpeciesID,
		Type:      string(l.Type),
		Year:      l.Year,
		Month:     l.Month,
		Project:   l.Project,
	}
}

// sameData reports whether two configs load the same data. Palette and
// opacity only change styling.
func (l LayerConfig) sameData(o LayerConfig) bool {
	return l.Selection() == o.Selection() && l.Type == o.Type
}

// LayerUpdate is a partial change to the active layer. Nil fields are kept.
type LayerUpdate struct {
	SpeciesID *int              `json:"aphiaId,omitempty" doc:"New species; resets project to _ALL"`
	Project   *string           `json:"project,omitempty" doc:"New project code"`
	Year      *inventory.Period `json:"year,omitempty" doc:"New year, or all"`
	Month     *inventory.Period `json:"month,omitempty" doc:"New month, or all"`
	Palette   *string           `json:"palette,omitempty" doc:"New palette name"`
	Opacity   *int              `json:"opacity,omitempty" minimum:"0" maximum:"100" doc:"New opacity (0-100)"`
	Type      *LayerType        `json:"type,omitempty" enum:"distribution,range" doc:"New layer type"`
}

func (u LayerUpdate) selection() resolve.Update {
	return resolve.Update{SpeciesID: u.SpeciesID, Project: u.Project, Year: u.Year, Month: u.Month}
}

// Stack is a snapshot of the layer stack. Index 0 is the topmost layer.
type Stack struct {
	Layers      []LayerConfig `json:"layers" doc:"Layers, topmost first"`
	ActiveIndex int           `json:"activeIndex" doc:"Index of the layer the editor targets"`
}

// Active returns the layer the editor targets.
func (s Stack) Active() LayerConfig {
	return s.Layers[s.ActiveIndex]
}

// Keys returns the layer keys in stack order.
func (s Stack) Keys() []string {
	keys := make([]string, len(s.Layers))
	for i, l := range s.Layers {
		keys[i] = l.LayerKey
	}
	return keys
}

// Find returns the layer with the given key.
func (s Stack) Find(key string) (LayerConfig, bool) {
	for _, l := range s.Layers {
		if l.LayerKey == key {
			return l, true
		}
	}
	return LayerConfig{}, false
}
