package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-atp/internal/service"
	"github.com/joeblew999/plat-atp/internal/upstream"
)

type HoverInput struct {
	Body struct {
		Lon      float64              `json:"lon" minimum:"-180" maximum:"180" doc:"Pointer longitude"`
		Lat      float64              `json:"lat" minimum:"-90" maximum:"90" doc:"Pointer latitude"`
		Features []service.RawFeature `json:"features" doc:"Rendered features under the pointer, topmost first"`
	}
}

type HoverBody struct {
	service.Hover
	Popup []service.PopupRow `json:"popup" doc:"Popup rows, one per hovered layer"`
}

type ClickInput struct {
	Body struct {
		Features []service.RawFeature `json:"features" doc:"Rendered features under the click, topmost first"`
	}
}

type CitedProject struct {
	Code string `json:"code" doc:"Project code"`
	upstream.Citation
	Known bool `json:"known" doc:"Whether a citation exists for the code"`
}

type ClickBody struct {
	Projects []CitedProject `json:"projects" doc:"Projects contributing to the clicked features"`
}

// RegisterPointer registers hover and click resolution routes.
func (h *APIHandler) RegisterPointer(api huma.API) {
	huma.Post(api, "/api/v1/hover", h.Hover, huma.OperationTags("pointer"))
	huma.Post(api, "/api/v1/click", h.Click, huma.OperationTags("pointer"))
}

func (h *APIHandler) Hover(ctx context.Context, input *HoverInput) (*struct{ Body HoverBody }, error) {
	s := h.svc.Stack
	loc := orb.Point{input.Body.Lon, input.Body.Lat}
	hv := service.ResolveHover(loc, input.Body.Features, s.Snapshot().Layers)
	maxLevel, hasMax := s.Aggregator().GlobalMaxLevel()
	return &struct{ Body HoverBody }{Body: HoverBody{
		Hover: hv,
		Popup: service.Popup(hv, s.Inventory(), maxLevel, hasMax),
	}}, nil
}

func (h *APIHandler) Click(ctx context.Context, input *ClickInput) (*struct{ Body ClickBody }, error) {
	codes := service.ClickProjects(input.Body.Features)
	body := ClickBody{Projects: make([]CitedProject, 0, len(codes))}
	if len(codes) == 0 {
		return &struct{ Body ClickBody }{Body: body}, nil
	}
	cites, err := h.ref.citations(ctx)
	if err != nil {
		return nil, err
	}
	for _, code := range codes {
		c, ok := cites[code]
		body.Projects = append(body.Projects, CitedProject{Code: code, Citation: c, Known: ok})
	}
	return &struct{ Body ClickBody }{Body: body}, nil
}
