package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-atp/internal/service"
)

// RegisterLegend registers the shared colour scale route.
func (h *APIHandler) RegisterLegend(api huma.API) {
	huma.Get(api, "/api/v1/legend", h.GetLegend, huma.OperationTags("legend"))
}

func (h *APIHandler) legend() service.Legend {
	s := h.svc.Stack
	return service.BuildLegend(s.Snapshot(), s.Aggregator(), s.Palettes(), s.Inventory())
}

func (h *APIHandler) GetLegend(ctx context.Context, input *struct{}) (*struct{ Body service.Legend }, error) {
	return &struct{ Body service.Legend }{Body: h.legend()}, nil
}
