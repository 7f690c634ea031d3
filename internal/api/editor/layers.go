// Package editor contains Datastar SSE handlers for the layer editor UI.
package editor

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-atp/internal/humastar"
	"github.com/joeblew999/plat-atp/internal/service"
	"github.com/joeblew999/plat-atp/internal/templates"
)

// LayerHandler serves the layer list and its editing actions over SSE.
type LayerHandler struct {
	humastar.Handler
	stack *service.StackService
}

func NewLayerHandler(stack *service.StackService, renderer *templates.Renderer) *LayerHandler {
	return &LayerHandler{Handler: humastar.Handler{Renderer: renderer}, stack: stack}
}

func (h *LayerHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/layers", h.ListLayers, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/layers", h.AddLayer, huma.OperationTags("editor"))
	huma.Patch(api, "/api/v1/editor/active", h.UpdateActive, huma.OperationTags("editor"))
	huma.Put(api, "/api/v1/editor/layers/{index}/select", h.SelectLayer, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/layers/{index}/move", h.MoveLayer, huma.OperationTags("editor"))
	huma.Delete(api, "/api/v1/editor/layers/{index}", h.DeleteLayer, huma.OperationTags("editor"))
}

type IndexInput struct {
	Index int `path:"index" minimum:"0" doc:"Layer position, 0 is topmost"`
}

type MoveInput struct {
	IndexInput
	Direction int `query:"direction" enum:"-1,1" doc:"-1 moves up, 1 moves down"`
}

func (h *LayerHandler) ListLayers(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		h.patchStack(sse, h.stack.Snapshot())
	}), nil
}

// AddLayer duplicates the active layer. The randomPalette signal defaults to true.
func (h *LayerHandler) AddLayer(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Parse()
	if err != nil {
		return nil, err
	}
	random := !signals.Has("randomPalette") || signals.Bool("randomPalette")

	return h.Stream(func(sse humastar.SSE) {
		st, ok := h.stack.AddLayer(ctx, h.stack.Snapshot().ActiveIndex, random)
		if !ok {
			sse.Error(fmt.Sprintf("A stack holds at most %d layers", service.MaxLayers))
			return
		}
		h.patchStack(sse, st)
		sse.Success("Layer added")
	}), nil
}

// UpdateActive applies the editor form signals to the active layer.
func (h *LayerHandler) UpdateActive(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Parse()
	if err != nil {
		return nil, err
	}
	upd, err := layerUpdate(signals)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	return h.Stream(func(sse humastar.SSE) {
		st, err := h.stack.UpdateActive(ctx, upd)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		h.patchStack(sse, st)
	}), nil
}

func (h *LayerHandler) SelectLayer(ctx context.Context, input *IndexInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		st, ok := h.stack.SetActive(input.Index)
		if !ok {
			sse.Error("Layer not found")
			return
		}
		h.patchStack(sse, st)
	}), nil
}

func (h *LayerHandler) MoveLayer(ctx context.Context, input *MoveInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		st, _ := h.stack.MoveLayer(ctx, input.Index, input.Direction)
		h.patchStack(sse, st)
	}), nil
}

func (h *LayerHandler) DeleteLayer(ctx context.Context, input *IndexInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		st, ok := h.stack.DeleteLayer(ctx, input.Index)
		if !ok {
			sse.Error("The last layer cannot be deleted")
			return
		}
		h.patchStack(sse, st)
		sse.Success("Layer deleted")
	}), nil
}

// LayerCardData is the view model of one layer card.
type LayerCardData struct {
	Key             string
	Index           int
	Active          bool
	Species         string
	Type            service.LayerType
	Project         string
	Year            string
	Month           string
	MaxLevel        string
	Stops           []string
	OpacityFraction float64
	Loading         bool
	NoData          bool
	CanMoveUp       bool
	CanMoveDown     bool
	CanDelete       bool
}

func (h *LayerHandler) cards(st service.Stack) []any {
	inv := h.stack.Inventory()
	agg := h.stack.Aggregator()
	items := make([]any, 0, len(st.Layers))
	for i, l := range st.Layers {
		status := agg.Status(l.LayerKey)
		card := LayerCardData{
			Key:             l.LayerKey,
			Index:           i,
			Active:          i == st.ActiveIndex,
			Species:         "Unknown",
			Type:            l.Type,
			Project:         l.Project,
			Year:            l.Year.String(),
			Month:           service.MonthLabel(l.Month),
			OpacityFraction: float64(l.Opacity) / 100,
			Loading:         status.Loading,
			NoData:          status.NoData,
			CanMoveUp:       i > 0,
			CanMoveDown:     i < len(st.Layers)-1,
			CanDelete:       len(st.Layers) > 1,
		}
		if e, ok := inv.FindSpecies(l.SpeciesID); ok {
			card.Species = e.CommonName
		}
		if lvl, ok := agg.LayerLevel(l.LayerKey); ok {
			card.MaxLevel = service.FormatLevel(lvl)
		}
		if p, ok := h.stack.Palettes().Get(l.Palette); ok {
			card.Stops = p.Stops
		}
		items = append(items, card)
	}
	return items
}

var emptyStack = humastar.EmptyState{Title: "No layers", Message: "Add a layer to get started"}

// patchStack sends the layer list, the legend and the active layer signals.
func (h *LayerHandler) patchStack(sse humastar.SSE, st service.Stack) {
	legend := service.BuildLegend(st, h.stack.Aggregator(), h.stack.Palettes(), h.stack.Inventory())
	sse.Patch(
		humastar.Fragment{Selector: "#layer-list", HTML: h.RenderList("layer-card", h.cards(st), emptyStack)},
		humastar.Fragment{Selector: "#legend", HTML: h.Render("legend", legend)},
	)
	sse.Signals(activeSignals(st))
}
