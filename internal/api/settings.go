package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-atp/internal/service"
)

// RegisterSettings registers display settings routes.
func (h *APIHandler) RegisterSettings(api huma.API) {
	huma.Get(api, "/api/v1/settings", h.GetSettings, huma.OperationTags("settings"))
	huma.Put(api, "/api/v1/settings", h.PutSettings, huma.OperationTags("settings"))
}

func (h *APIHandler) GetSettings(ctx context.Context, input *struct{}) (*struct{ Body service.Settings }, error) {
	return &struct{ Body service.Settings }{Body: h.svc.Settings.Get()}, nil
}

func (h *APIHandler) PutSettings(ctx context.Context, input *struct{ Body service.SettingsUpdate }) (*struct{ Body service.Settings }, error) {
	st, err := h.svc.Settings.Update(ctx, input.Body)
	if err != nil {
		return nil, stackError(err)
	}
	return &struct{ Body service.Settings }{Body: st}, nil
}
