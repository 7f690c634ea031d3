package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-atp/internal/humastar"
	"github.com/joeblew999/plat-atp/internal/service"
	"github.com/joeblew999/plat-atp/internal/templates"
)

// EventHandler streams stack and settings changes to the Datastar UI via SSE.
type EventHandler struct {
	layers   *LayerHandler
	settings *service.SettingsService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(stack *service.StackService, settings *service.SettingsService, renderer *templates.Renderer) *EventHandler {
	return &EventHandler{layers: NewLayerHandler(stack, renderer), settings: settings}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/events", h.Events,
		huma.OperationTags("editor"),
	)
}

func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.layers.Stream(func(sse humastar.SSE) {
		bus := h.layers.stack.Bus()
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		h.layers.patchStack(sse, h.layers.stack.Snapshot())
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				switch ev.Resource {
				case "stack", "layer":
					h.layers.patchStack(sse, h.layers.stack.Snapshot())
				case "settings":
					if h.settings != nil {
						s := h.settings.Get()
						sse.Signals(map[string]any{
							"basemap":    s.Basemap,
							"showPhotos": s.ShowPhotos,
							"miniPhotos": s.MiniPhotos,
						})
					}
				}
				sse.DispatchCustomEvent("resource-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"id":       ev.ID,
				})
			}
		}
	}), nil
}
