package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/metrics"
	"github.com/joeblew999/plat-atp/internal/resolve"
)

// Built-in default layer, used when nothing usable was persisted.
const (
	DefaultSpeciesID = 105793
	DefaultYear      = 2017
	DefaultPalette   = "viridis"
)

// DefaultLayer returns the built-in default layer under key.
func DefaultLayer(key string) LayerConfig {
	return LayerConfig{
		LayerKey:  key,
		SpeciesID: DefaultSpeciesID,
		Project:   inventory.AllProjects,
		Year:      DefaultYear,
		Month:     inventory.All,
		Palette:   DefaultPalette,
		Opacity:   DefaultOpacity,
		Type:      Distribution,
	}
}

// storedLayer reads persisted layers, telling a missing opacity from 0.
type storedLayer struct {
	LayerConfig
	Opacity *int `json:"opacity"`
}

// decodeStack parses a persisted layer list. It fills style defaults and
// regenerates empty or duplicate keys.
func decodeStack(raw string, newKey func() string, palettes *Palettes) ([]LayerConfig, error) {
	var stored []storedLayer
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("empty layer list")
	}
	if len(stored) > MaxLayers {
		stored = stored[:MaxLayers]
	}

	seen := map[string]bool{}
	layers := make([]LayerConfig, 0, len(stored))
	for _, st := range stored {
		l := st.LayerConfig
		l.Opacity = DefaultOpacity
		if st.Opacity != nil && *st.Opacity >= 0 && *st.Opacity <= 100 {
			l.Opacity = *st.Opacity
		}
		if !l.Type.Valid() {
			l.Type = Distribution
		}
		if !palettes.Has(l.Palette) {
			l.Palette = DefaultPalette
		}
		if l.Project == "" {
			l.Project = inventory.AllProjects
		}
		if l.LayerKey == "" || seen[l.LayerKey] {
			l.LayerKey = newKey()
		}
		if l.LayerKey == "" || seen[l.LayerKey] {
			l.LayerKey = NewLayerKey()
		}
		seen[l.LayerKey] = true
		layers = append(layers, l)
	}
	return layers, nil
}

// Load replaces the stack with the persisted one. Absent or malformed data
// leaves the built-in default in place. The restored stack is not checked
// against the inventory; call Reconcile once one is loaded.
func (s *StackService) Load(ctx context.Context) error {
	raw, ok, err := s.store.Get(ctx, StackKey)
	if err != nil {
		return fmt.Errorf("reading persisted stack: %w", err)
	}
	if !ok {
		s.logger.Info("no persisted layer stack, using default")
		metrics.RestoredLayers.WithLabelValues("defaulted").Inc()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	layers, err := decodeStack(raw, s.newKey, s.palettes)
	if err != nil {
		s.logger.Warn("persisted layer stack is malformed, using default", "error", err)
		metrics.RestoredLayers.WithLabelValues("defaulted").Inc()
		return nil
	}
	s.layers = layers
	s.active = 0
	metrics.StackSize.Set(float64(len(layers)))
	return nil
}

// Reconcile drops every layer that no longer resolves against the current
// inventory. When none survive, the stack becomes a single default layer
// built from the inventory's first entry. It reports how many layers were
// kept and dropped.
func (s *StackService) Reconcile(ctx context.Context) (kept, dropped int, err error) {
	inv := s.inv.Get()
	first, ok := inv.First()
	if !ok {
		return 0, 0, resolve.ErrNoInventory
	}
	r := resolve.New(inv)

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.layers)
	var valid []LayerConfig
	for _, l := range s.layers {
		if r.Resolves(l.Selection()) {
			valid = append(valid, l)
		}
	}
	s.logger.Info("valid layer check", "before", before, "after", len(valid))

	kept, dropped = len(valid), before-len(valid)
	metrics.RestoredLayers.WithLabelValues("kept").Add(float64(kept))
	metrics.RestoredLayers.WithLabelValues("dropped").Add(float64(dropped))

	if len(valid) == 0 {
		valid = []LayerConfig{fallbackLayer(inv, first, s.uniqueKey())}
		metrics.RestoredLayers.WithLabelValues("defaulted").Inc()
	}

	s.layers = valid
	s.active = 0
	s.schedule(s.layers...)
	s.commit(ctx, "restore", Event{Resource: "stack", Action: ActionRestored})
	return kept, dropped, nil
}

// fallbackLayer builds a layer from an inventory entry's first project and
// first year.
func fallbackLayer(inv *inventory.Inventory, e inventory.Entry, key string) LayerConfig {
	l := DefaultLayer(key)
	l.SpeciesID = e.SpeciesID
	l.Project = inventory.AllProjects
	if projects := inv.ProjectsFor(e.SpeciesID); len(projects) > 0 {
		l.Project = projects[0]
	}
	l.Year = inventory.All
	if years := inv.YearsFor(e.SpeciesID, l.Project); len(years) > 0 {
		l.Year = inventory.Period(years[0])
	}
	return l
}
