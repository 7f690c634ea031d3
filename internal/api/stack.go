package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-atp/internal/humastar"
	"github.com/joeblew999/plat-atp/internal/resolve"
	"github.com/joeblew999/plat-atp/internal/service"
)

var (
	addLayerAction    = humastar.ActionDef{Rel: "add", Pattern: "/api/v1/stack/layers", Method: "POST", Title: "Add layer"}
	selectAction      = humastar.ActionDef{Rel: "select", Pattern: "/api/v1/stack/active", Method: "PUT", Title: "Select layer %d"}
	moveUpAction      = humastar.ActionDef{Rel: "move-up", Pattern: "/api/v1/stack/layers/%d/move", Method: "POST", Title: "Move layer %d up"}
	moveDownAction    = humastar.ActionDef{Rel: "move-down", Pattern: "/api/v1/stack/layers/%d/move", Method: "POST", Title: "Move layer %d down"}
	deleteLayerAction = humastar.ActionDef{Rel: "delete", Pattern: "/api/v1/stack/layers/%d", Method: "DELETE", Title: "Delete layer %d"}
	stepAction        = humastar.ActionDef{Rel: "step", Pattern: "/api/v1/stack/active/step", Method: "POST"}
)

// StackBody is the stack plus the load state of each layer.
type StackBody struct {
	service.Stack
	Changed  bool                           `json:"changed" doc:"Whether the request modified the stack"`
	Statuses map[string]service.LayerStatus `json:"statuses" doc:"Load state by layer key"`

	stepYear, stepMonth [2]bool
}

// Actions lists what the client may do to the stack in its current state.
func (b *StackBody) Actions() []humastar.Action {
	n := len(b.Layers)
	var out []humastar.Action
	if n < service.MaxLayers {
		out = append(out, addLayerAction.For())
	}
	for i := range b.Layers {
		if i != b.ActiveIndex {
			out = append(out, selectAction.For(i))
		}
		if i > 0 {
			out = append(out, moveUpAction.For(i))
		}
		if i < n-1 {
			out = append(out, moveDownAction.For(i))
		}
		if n > 1 {
			out = append(out, deleteLayerAction.For(i))
		}
	}
	for _, s := range []struct {
		field string
		can   [2]bool
	}{{"year", b.stepYear}, {"month", b.stepMonth}} {
		if s.can[0] {
			a := stepAction.For()
			a.Rel, a.Title = "prev-"+s.field, "Previous "+s.field
			out = append(out, a)
		}
		if s.can[1] {
			a := stepAction.For()
			a.Rel, a.Title = "next-"+s.field, "Next "+s.field
			out = append(out, a)
		}
	}
	return out
}

type StackOutput struct {
	Body *StackBody
}

type IndexInput struct {
	Index int `path:"index" minimum:"0" doc:"Layer position, 0 is topmost" example:"0"`
}

type AddLayerBody struct {
	Source        *int `json:"source,omitempty" minimum:"0" doc:"Layer to duplicate; defaults to the active layer"`
	RandomPalette bool `json:"randomPalette" default:"true" doc:"Pick an unused palette for the copy"`
}

type SelectLayerBody struct {
	Index int `json:"index" minimum:"0" doc:"Layer position to make active"`
}

type MoveLayerBody struct {
	Direction int `json:"direction" enum:"-1,1" doc:"-1 moves toward the top, 1 toward the bottom"`
}

type StepBody struct {
	Field     string `json:"field" enum:"year,month" doc:"Field to step"`
	Direction int    `json:"direction" enum:"-1,1" doc:"-1 for previous, 1 for next"`
}

// RegisterStack registers layer stack routes.
func (h *APIHandler) RegisterStack(api huma.API) {
	huma.Get(api, "/api/v1/stack", h.GetStack, huma.OperationTags("stack"))
	huma.Post(api, "/api/v1/stack/layers", h.AddLayer, huma.OperationTags("stack"))
	huma.Patch(api, "/api/v1/stack/active", h.UpdateActive, huma.OperationTags("stack"))
	huma.Put(api, "/api/v1/stack/active", h.SelectLayer, huma.OperationTags("stack"))
	huma.Post(api, "/api/v1/stack/active/step", h.StepActive, huma.OperationTags("stack"))
	huma.Post(api, "/api/v1/stack/layers/{index}/move", h.MoveLayer, huma.OperationTags("stack"))
	huma.Delete(api, "/api/v1/stack/layers/{index}", h.DeleteLayer, huma.OperationTags("stack"))
	huma.Post(api, "/api/v1/stack/reload", h.ReloadStack, huma.OperationTags("stack"))
}

func (h *APIHandler) stackOutput(st service.Stack, changed bool) *StackOutput {
	agg := h.svc.Stack.Aggregator()
	body := &StackBody{Stack: st, Changed: changed, Statuses: make(map[string]service.LayerStatus, len(st.Layers))}
	for _, l := range st.Layers {
		body.Statuses[l.LayerKey] = agg.Status(l.LayerKey)
	}

	a := st.Active()
	r := resolve.New(h.svc.Stack.Inventory())
	body.stepYear = [2]bool{
		r.HasPrevYear(a.SpeciesID, a.Project, a.Year),
		r.HasNextYear(a.SpeciesID, a.Project, a.Year),
	}
	body.stepMonth = [2]bool{
		r.HasPrevMonth(a.SpeciesID, a.Project, a.Year, a.Month),
		r.HasNextMonth(a.SpeciesID, a.Project, a.Year, a.Month),
	}
	return &StackOutput{Body: body}
}

func (h *APIHandler) GetStack(ctx context.Context, input *struct{}) (*StackOutput, error) {
	return h.stackOutput(h.svc.Stack.Snapshot(), false), nil
}

func (h *APIHandler) AddLayer(ctx context.Context, input *struct{ Body AddLayerBody }) (*StackOutput, error) {
	src := h.svc.Stack.Snapshot().ActiveIndex
	if input.Body.Source != nil {
		src = *input.Body.Source
	}
	st, changed := h.svc.Stack.AddLayer(ctx, src, input.Body.RandomPalette)
	return h.stackOutput(st, changed), nil
}

func (h *APIHandler) UpdateActive(ctx context.Context, input *struct{ Body service.LayerUpdate }) (*StackOutput, error) {
	before := h.svc.Stack.Snapshot()
	st, err := h.svc.Stack.UpdateActive(ctx, input.Body)
	if err != nil {
		return nil, stackError(err)
	}
	return h.stackOutput(st, st.Active() != before.Active()), nil
}

func (h *APIHandler) SelectLayer(ctx context.Context, input *struct{ Body SelectLayerBody }) (*StackOutput, error) {
	before := h.svc.Stack.Snapshot().ActiveIndex
	st, ok := h.svc.Stack.SetActive(input.Body.Index)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return h.stackOutput(st, st.ActiveIndex != before), nil
}

func (h *APIHandler) StepActive(ctx context.Context, input *struct{ Body StepBody }) (*StackOutput, error) {
	st, changed := h.svc.Stack.Step(ctx, input.Body.Field, input.Body.Direction)
	return h.stackOutput(st, changed), nil
}

func (h *APIHandler) MoveLayer(ctx context.Context, input *struct {
	IndexInput
	Body MoveLayerBody
}) (*StackOutput, error) {
	st, changed := h.svc.Stack.MoveLayer(ctx, input.Index, input.Body.Direction)
	return h.stackOutput(st, changed), nil
}

func (h *APIHandler) DeleteLayer(ctx context.Context, input *IndexInput) (*StackOutput, error) {
	st, changed := h.svc.Stack.DeleteLayer(ctx, input.Index)
	return h.stackOutput(st, changed), nil
}

// ReloadStack refetches every layer's data without changing the stack.
func (h *APIHandler) ReloadStack(ctx context.Context, input *struct{}) (*StackOutput, error) {
	if _, err := h.loadedInventory(); err != nil {
		return nil, err
	}
	h.svc.Stack.Reload()
	return h.stackOutput(h.svc.Stack.Snapshot(), false), nil
}
