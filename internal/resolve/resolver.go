package resolve

import (
	"errors"
	"fmt"
	"slices"

	"github.com/joeblew999/plat-atp/internal/inventory"
)

var (
	// ErrUnknownSpecies is returned when the species is not in the inventory.
	ErrUnknownSpecies = errors.New("species not in inventory")
	// ErrUnknownProject is returned when the project has no data for the species.
	ErrUnknownProject = errors.New("project not available for species")
	// ErrNoInventory is returned before an inventory has been loaded.
	ErrNoInventory = errors.New("inventory not loaded")
)

// Selection is the availability-constrained part of a layer.
type Selection struct {
	SpeciesID int
	Project   string
	Year      inventory.Period
	Month     inventory.Period
}

// Update is a partial change to a Selection. Nil fields are left as is.
type Update struct {
	SpeciesID *int
	Project   *string
	Year      *inventory.Period
	Month     *inventory.Period
}

// Empty reports whether the update touches no selection field.
func (u Update) Empty() bool {
	return u.SpeciesID == nil && u.Project == nil && u.Year == nil && u.Month == nil
}

// Resolver answers availability questions against one inventory snapshot.
type Resolver struct {
	inv *inventory.Inventory
}

// New creates a resolver over inv.
func New(inv *inventory.Inventory) *Resolver {
	return &Resolver{inv: inv}
}

// Resolve merges upd onto cur and snaps the result onto available data.
// The steps run in a fixed order: merge, species change resets the project
// to _ALL, project lookup, year snap, then month snap against the (possibly
// corrected) year. A species/project pair missing from the inventory is an
// error and nothing should be committed.
func (r *Resolver) Resolve(cur Selection, upd Update) (Selection, error) {
	if r.inv.Len() == 0 {
		return cur, ErrNoInventory
	}

	next := cur
	speciesChanged := false
	if upd.SpeciesID != nil {
		speciesChanged = *upd.SpeciesID != cur.SpeciesID
		next.SpeciesID = *upd.SpeciesID
	}
	if upd.Project != nil {
		next.Project = *upd.Project
	}
	if upd.Year != nil {
		next.Year = *upd.Year
	}
	if upd.Month != nil {
		next.Month = *upd.Month
	}

	if speciesChanged {
		next.Project = inventory.AllProjects
	}

	if _, ok := r.inv.FindSpecies(next.SpeciesID); !ok {
		return cur, fmt.Errorf("%w: %d", ErrUnknownSpecies, next.SpeciesID)
	}
	years := r.inv.YearsFor(next.SpeciesID, next.Project)
	if len(years) == 0 {
		return cur, fmt.Errorf("%w: %s for %d", ErrUnknownProject, next.Project, next.SpeciesID)
	}

	if !next.Year.IsAll() && !slices.Contains(years, next.Year.Int()) {
		y, _ := Closest(years, next.Year.Int())
		next.Year = inventory.Period(y)
	}

	if !next.Month.IsAll() && !next.Year.IsAll() {
		months := r.inv.MonthsFor(next.SpeciesID, next.Project, next.Year.Int())
		if !slices.Contains(months, next.Month.Int()) {
			if m, ok := Closest(months, next.Month.Int()); ok {
				next.Month = inventory.Period(m)
			} else {
				next.Month = inventory.All
			}
		}
	}

	return next, nil
}

// Resolves reports whether sel already names available data: the species
// and project exist, the year is present (or "all" with at least one year),
// and the month is "all" or present for that year. Under the "all" year any
// calendar month is accepted, matching Resolve which skips month snapping
// there.
func (r *Resolver) Resolves(sel Selection) bool {
	years := r.inv.YearsFor(sel.SpeciesID, sel.Project)
	if len(years) == 0 {
		return false
	}
	if sel.Year.IsAll() {
		return sel.Month.IsAll() || (sel.Month >= 1 && sel.Month <= 12)
	}
	if !slices.Contains(years, sel.Year.Int()) {
		return false
	}
	if sel.Month.IsAll() {
		return true
	}
	return slices.Contains(r.inv.MonthsFor(sel.SpeciesID, sel.Project, sel.Year.Int()), sel.Month.Int())
}

// EnabledYears returns the raw available years. Whether "all" is offered is
// up to the caller.
func (r *Resolver) EnabledYears(species int, project string) []int {
	return r.inv.YearsFor(species, project)
}

// EnabledMonths returns the raw available months for a year. For the "all"
// year it returns the union across every year.
func (r *Resolver) EnabledMonths(species int, project string, year inventory.Period) []int {
	if !year.IsAll() {
		return r.inv.MonthsFor(species, project, year.Int())
	}
	var union []int
	for _, y := range r.inv.YearsFor(species, project) {
		union = append(union, r.inv.MonthsFor(species, project, y)...)
	}
	slices.Sort(union)
	return slices.Compact(union)
}

// HasPrevYear reports whether the current year is available and not first.
func (r *Resolver) HasPrevYear(species int, project string, cur inventory.Period) bool {
	_, ok := r.StepYear(species, project, cur, -1)
	return ok
}

// HasNextYear reports whether the current year is available and not last.
func (r *Resolver) HasNextYear(species int, project string, cur inventory.Period) bool {
	_, ok := r.StepYear(species, project, cur, 1)
	return ok
}

// StepYear moves to the adjacent available year. At either edge, or when the
// current year is "all" or unavailable, it returns cur and false.
func (r *Resolver) StepYear(species int, project string, cur inventory.Period, dir int) (inventory.Period, bool) {
	if cur.IsAll() {
		return cur, false
	}
	y, ok := step(r.inv.YearsFor(species, project), cur.Int(), dir)
	return inventory.Period(y), ok
}

// HasPrevMonth reports whether the current month is available and not first.
func (r *Resolver) HasPrevMonth(species int, project string, year, cur inventory.Period) bool {
	_, ok := r.StepMonth(species, project, year, cur, -1)
	return ok
}

// HasNextMonth reports whether the current month is available and not last.
func (r *Resolver) HasNextMonth(species int, project string, year, cur inventory.Period) bool {
	_, ok := r.StepMonth(species, project, year, cur, 1)
	return ok
}

// StepMonth moves to the adjacent available month within year. Stepping is a
// no-op when the month is "all".
func (r *Resolver) StepMonth(species int, project string, year, cur inventory.Period, dir int) (inventory.Period, bool) {
	if cur.IsAll() || year.IsAll() {
		return cur, false
	}
	m, ok := step(r.inv.MonthsFor(species, project, year.Int()), cur.Int(), dir)
	return inventory.Period(m), ok
}
