// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-atp/internal/service"
	"github.com/joeblew999/plat-atp/internal/upstream"
)

// Reference is the upstream reference data the API exposes alongside the
// stack. *upstream.Client satisfies it.
type Reference interface {
	Citations(ctx context.Context) (map[string]upstream.Citation, error)
	Photos(ctx context.Context) (map[int]upstream.Media, error)
}

// Services holds the service dependencies for API handlers.
type Services struct {
	Stack     *service.StackService
	Settings  *service.SettingsService
	Reference Reference
}

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status    string `json:"status" doc:"Health status" example:"ok"`
	Version   string `json:"version" doc:"API version" example:"1.0.0"`
	Inventory bool   `json:"inventory" doc:"Whether the species inventory has loaded"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
	ref *referenceCache
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc, ref: newReferenceCache(svc.Reference)}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	body := HealthBody{Status: "ok", Version: "1.0.0"}
	if h.svc.Stack != nil {
		body.Inventory = h.svc.Stack.Inventory().Len() > 0
	}
	return &struct{ Body HealthBody }{Body: body}, nil
}

// stackError maps service errors to HTTP problems.
func stackError(err error) error {
	switch {
	case errors.Is(err, service.ErrResolution), errors.Is(err, service.ErrInvalidUpdate):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("stack operation failed", err)
}
