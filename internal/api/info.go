package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataURL string
	store   string
	dbOK    bool
}

func NewInfoHandler(dataURL, store string, dbOK bool) *InfoHandler {
	return &InfoHandler{dataURL: dataURL, store: store, dbOK: dbOK}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataURL  string   `json:"data_url" doc:"Upstream data API"`
	Store    string   `json:"store" doc:"Persistence backend"`
	DB       bool     `json:"db" doc:"Whether the inventory is read from DuckDB"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-atp",
		Version:  "0.1.0",
		DataURL:  h.dataURL,
		Store:    h.store,
		DB:       h.dbOK,
		Features: []string{"stack", "legend", "hover", "citations", "photos", "editor"},
	}}, nil
}
