package api

import (
	"context"
	"sync"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-atp/internal/upstream"
)

// referenceCache keeps the first successful citation and photo listings.
// Failures are not cached, so the next request retries upstream.
type referenceCache struct {
	src Reference

	mu     sync.Mutex
	cites  map[string]upstream.Citation
	photos map[int]upstream.Media
}

func newReferenceCache(src Reference) *referenceCache {
	return &referenceCache{src: src}
}

func (c *referenceCache) citations(ctx context.Context) (map[string]upstream.Citation, error) {
	c.mu.Lock()
	cached := c.cites
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	if c.src == nil {
		return nil, huma.Error503ServiceUnavailable("citations unavailable")
	}
	cites, err := c.src.Citations(ctx)
	if err != nil {
		return nil, huma.Error502BadGateway("fetching citations", err)
	}
	c.mu.Lock()
	c.cites = cites
	c.mu.Unlock()
	return cites, nil
}

func (c *referenceCache) photoListing(ctx context.Context) (map[int]upstream.Media, error) {
	c.mu.Lock()
	cached := c.photos
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	if c.src == nil {
		return nil, huma.Error503ServiceUnavailable("photos unavailable")
	}
	photos, err := c.src.Photos(ctx)
	if err != nil {
		return nil, huma.Error502BadGateway("fetching photos", err)
	}
	c.mu.Lock()
	c.photos = photos
	c.mu.Unlock()
	return photos, nil
}

type SpeciesInput struct {
	Species int `path:"species" doc:"Species AphiaID" example:"105793"`
}

// RegisterReference registers citation and photo routes.
func (h *APIHandler) RegisterReference(api huma.API) {
	huma.Get(api, "/api/v1/citations", h.GetCitations, huma.OperationTags("reference"))
	huma.Get(api, "/api/v1/photos", h.GetPhotos, huma.OperationTags("reference"))
	huma.Get(api, "/api/v1/photos/{species}", h.GetPhoto, huma.OperationTags("reference"))
}

func (h *APIHandler) GetCitations(ctx context.Context, input *struct{}) (*struct{ Body map[string]upstream.Citation }, error) {
	cites, err := h.ref.citations(ctx)
	if err != nil {
		return nil, err
	}
	return &struct{ Body map[string]upstream.Citation }{Body: cites}, nil
}

func (h *APIHandler) GetPhotos(ctx context.Context, input *struct{}) (*struct{ Body map[int]upstream.Media }, error) {
	photos, err := h.ref.photoListing(ctx)
	if err != nil {
		return nil, err
	}
	return &struct{ Body map[int]upstream.Media }{Body: photos}, nil
}

func (h *APIHandler) GetPhoto(ctx context.Context, input *SpeciesInput) (*struct{ Body upstream.Media }, error) {
	photos, err := h.ref.photoListing(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := photos[input.Species]
	if !ok {
		return nil, huma.Error404NotFound("no photo for species")
	}
	return &struct{ Body upstream.Media }{Body: m}, nil
}
