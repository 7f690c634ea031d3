package editor

import (
	"fmt"
	"strconv"

	"github.com/joeblew999/plat-atp/internal/humastar"
	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/service"
)

// activeSignals mirrors the active layer into the editor form.
func activeSignals(st service.Stack) map[string]any {
	a := st.Active()
	return map[string]any{
		"activeIndex": st.ActiveIndex,
		"layerCount":  len(st.Layers),
		"canAdd":      len(st.Layers) < service.MaxLayers,
		"aphiaId":     a.SpeciesID,
		"project":     a.Project,
		"year":        a.Year.String(),
		"month":       a.Month.String(),
		"palette":     a.Palette,
		"opacity":     a.Opacity,
		"type":        string(a.Type),
	}
}

// layerUpdate builds an update from the form signals that are present.
func layerUpdate(s humastar.Signals) (service.LayerUpdate, error) {
	var upd service.LayerUpdate
	if s.Has("aphiaId") {
		id := s.Int("aphiaId")
		upd.SpeciesID = &id
	}
	if s.Has("project") {
		p := s.String("project")
		upd.Project = &p
	}
	for key, dst := range map[string]**inventory.Period{"year": &upd.Year, "month": &upd.Month} {
		if !s.Has(key) {
			continue
		}
		p, err := periodSignal(s[key])
		if err != nil {
			return upd, fmt.Errorf("%s: %w", key, err)
		}
		*dst = &p
	}
	if s.Has("palette") {
		p := s.String("palette")
		upd.Palette = &p
	}
	if s.Has("opacity") {
		o := s.Int("opacity")
		upd.Opacity = &o
	}
	if s.Has("type") {
		t := service.LayerType(s.String("type"))
		upd.Type = &t
	}
	return upd, nil
}

// periodSignal accepts a number, a numeric string or "all".
func periodSignal(v any) (inventory.Period, error) {
	switch x := v.(type) {
	case float64:
		return inventory.ParsePeriod(strconv.Itoa(int(x)))
	case string:
		return inventory.ParsePeriod(x)
	}
	return inventory.All, fmt.Errorf("invalid period %v", v)
}
