package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/resolve"
)

type InventoryBody struct {
	Species []inventory.Entry `json:"species" doc:"Species availability, in inventory order"`
}

type AvailabilityInput struct {
	Species int    `path:"species" doc:"Species AphiaID" example:"105793"`
	Project string `query:"project" default:"_ALL" doc:"Project code" example:"_ALL"`
	Year    string `query:"year" default:"all" doc:"Year, or all" example:"2017"`
	Month   string `query:"month" default:"all" doc:"Month 1-12, or all"`
}

type AvailabilityBody struct {
	SpeciesID    int      `json:"aphiaId" doc:"Species AphiaID"`
	Projects     []string `json:"projects" doc:"Projects with data, _ALL first"`
	Years        []int    `json:"years" doc:"Years with data for the project"`
	Months       []int    `json:"months" doc:"Months with data for the year; the union across years when year is all"`
	HasPrevYear  bool     `json:"hasPrevYear" doc:"An earlier year is available"`
	HasNextYear  bool     `json:"hasNextYear" doc:"A later year is available"`
	HasPrevMonth bool     `json:"hasPrevMonth" doc:"An earlier month is available"`
	HasNextMonth bool     `json:"hasNextMonth" doc:"A later month is available"`
}

// RegisterInventory registers species availability routes.
func (h *APIHandler) RegisterInventory(api huma.API) {
	huma.Get(api, "/api/v1/inventory", h.GetInventory, huma.OperationTags("inventory"))
	huma.Get(api, "/api/v1/inventory/{species}/availability", h.GetAvailability, huma.OperationTags("inventory"))
}

func (h *APIHandler) loadedInventory() (*inventory.Inventory, error) {
	inv := h.svc.Stack.Inventory()
	if inv.Len() == 0 {
		return nil, huma.Error503ServiceUnavailable("inventory not loaded")
	}
	return inv, nil
}

func (h *APIHandler) GetInventory(ctx context.Context, input *struct{}) (*struct{ Body InventoryBody }, error) {
	inv, err := h.loadedInventory()
	if err != nil {
		return nil, err
	}
	return &struct{ Body InventoryBody }{Body: InventoryBody{Species: inv.Species()}}, nil
}

func (h *APIHandler) GetAvailability(ctx context.Context, input *AvailabilityInput) (*struct{ Body AvailabilityBody }, error) {
	inv, err := h.loadedInventory()
	if err != nil {
		return nil, err
	}
	if _, ok := inv.FindSpecies(input.Species); !ok {
		return nil, huma.Error404NotFound("species not found")
	}
	year, err := inventory.ParsePeriod(input.Year)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid year", err)
	}
	month, err := inventory.ParsePeriod(input.Month)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid month", err)
	}

	r := resolve.New(inv)
	body := AvailabilityBody{
		SpeciesID:    input.Species,
		Projects:     inv.ProjectsFor(input.Species),
		Years:        r.EnabledYears(input.Species, input.Project),
		Months:       r.EnabledMonths(input.Species, input.Project, year),
		HasPrevYear:  r.HasPrevYear(input.Species, input.Project, year),
		HasNextYear:  r.HasNextYear(input.Species, input.Project, year),
		HasPrevMonth: r.HasPrevMonth(input.Species, input.Project, year, month),
		HasNextMonth: r.HasNextMonth(input.Species, input.Project, year, month),
	}
	if body.Years == nil {
		body.Years = []int{}
	}
	if body.Months == nil {
		body.Months = []int{}
	}
	return &struct{ Body AvailabilityBody }{Body: body}, nil
}
