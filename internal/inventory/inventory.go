// Package inventory holds the per-species data availability snapshot served
// by the upstream inventory endpoint: which projects, years and months have
// distribution/range data for each species.
package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// AllProjects is the reserved project code meaning "aggregate across all
// projects". Every species entry carries it.
const AllProjects = "_ALL"

// Period is a year or month selection. The zero value is the "all" sentinel
// (aggregate across the year, or across all years).
type Period int

// All is the "all" sentinel for years and months.
const All Period = 0

// IsAll reports whether p is the "all" sentinel.
func (p Period) IsAll() bool { return p == All }

// Int returns the numeric value. Meaningless when p is All.
func (p Period) Int() int { return int(p) }

func (p Period) String() string {
	if p.IsAll() {
		return "all"
	}
	return strconv.Itoa(int(p))
}

// MarshalJSON encodes All as the string "all" and anything else as a number.
func (p Period) MarshalJSON() ([]byte, error) {
	if p.IsAll() {
		return []byte(`"all"`), nil
	}
	return []byte(strconv.Itoa(int(p))), nil
}

// UnmarshalJSON accepts a number, a numeric string, or "all".
func (p *Period) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*p = All
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if strings.EqualFold(s, "all") || s == "" {
			*p = All
			return nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid period %s", data)
	}
	if n <= 0 {
		return fmt.Errorf("invalid period %d", n)
	}
	*p = Period(n)
	return nil
}

// ParsePeriod parses "all" or a positive integer.
func ParsePeriod(s string) (Period, error) {
	var p Period
	if err := p.UnmarshalJSON([]byte(strconv.Quote(s))); err != nil {
		return All, err
	}
	return p, nil
}

// YearAvailability lists the months with data for one year.
type YearAvailability struct {
	Year   int   `json:"year"`
	Months []int `json:"months"`
}

// ProjectAvailability lists the years with data for one project, ascending.
type ProjectAvailability struct {
	Years []YearAvailability `json:"years"`
}

// Entry is the availability record for one species.
type Entry struct {
	SpeciesID      int                            `json:"aphiaId"`
	CommonName     string                         `json:"speciesCommonName"`
	ScientificName string                         `json:"speciesScientificName"`
	ByProject      map[string]ProjectAvailability `json:"byProject"`
}

// Inventory is a read-only snapshot. Build a new one rather than mutating it.
type Inventory struct {
	entries []Entry
	index   map[int]int
}

// New creates an inventory from entries, keeping their order. Years and
// months are normalized (sorted, de-duplicated, months limited to 1-12).
func New(entries []Entry) *Inventory {
	inv := &Inventory{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[int]int, len(entries)),
	}
	for _, e := range entries {
		if _, dup := inv.index[e.SpeciesID]; dup {
			continue
		}
		e.ByProject = normalizeProjects(e.ByProject)
		inv.index[e.SpeciesID] = len(inv.entries)
		inv.entries = append(inv.entries, e)
	}
	return inv
}

// Len returns the number of species.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.entries)
}

// Species returns all entries in inventory order.
func (inv *Inventory) Species() []Entry {
	if inv == nil {
		return nil
	}
	return slices.Clone(inv.entries)
}

// First returns the first species entry.
func (inv *Inventory) First() (Entry, bool) {
	if inv.Len() == 0 {
		return Entry{}, false
	}
	return inv.entries[0], true
}

// FindSpecies looks up a species by ID.
func (inv *Inventory) FindSpecies(id int) (Entry, bool) {
	if inv == nil {
		return Entry{}, false
	}
	i, ok := inv.index[id]
	if !ok {
		return Entry{}, false
	}
	return inv.entries[i], true
}

// ProjectsFor returns the species' project codes with _ALL first and the
// rest sorted. Nil when the species is unknown.
func (inv *Inventory) ProjectsFor(id int) []string {
	e, ok := inv.FindSpecies(id)
	if !ok {
		return nil
	}
	codes := make([]string, 0, len(e.ByProject))
	for code := range e.ByProject {
		if code != AllProjects {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)
	if _, ok := e.ByProject[AllProjects]; ok {
		codes = append([]string{AllProjects}, codes...)
	}
	return codes
}

// Project returns the availability for a species/project pair.
func (inv *Inventory) Project(id int, project string) (ProjectAvailability, bool) {
	e, ok := inv.FindSpecies(id)
	if !ok {
		return ProjectAvailability{}, false
	}
	p, ok := e.ByProject[project]
	return p, ok
}

// YearsFor returns the ascending years with data, empty if the project is
// unknown for the species.
func (inv *Inventory) YearsFor(id int, project string) []int {
	p, ok := inv.Project(id, project)
	if !ok {
		return []int{}
	}
	years := make([]int, len(p.Years))
	for i, y := range p.Years {
		years[i] = y.Year
	}
	return years
}

// MonthsFor returns the ascending months with data for a year, empty if the
// year is unknown.
func (inv *Inventory) MonthsFor(id int, project string, year int) []int {
	p, ok := inv.Project(id, project)
	if !ok {
		return []int{}
	}
	for _, y := range p.Years {
		if y.Year == year {
			return slices.Clone(y.Months)
		}
	}
	return []int{}
}

// ErrEmpty is returned by Validate for an inventory without species.
var ErrEmpty = errors.New("inventory has no species")

// Validate checks the structural invariants: at least one species, every
// species carries _ALL, every project has at least one year, months are
// within 1-12.
func (inv *Inventory) Validate() error {
	if inv.Len() == 0 {
		return ErrEmpty
	}
	for _, e := range inv.entries {
		if _, ok := e.ByProject[AllProjects]; !ok {
			return fmt.Errorf("species %d: missing %s project", e.SpeciesID, AllProjects)
		}
		for code, p := range e.ByProject {
			if len(p.Years) == 0 {
				return fmt.Errorf("species %d project %s: no years", e.SpeciesID, code)
			}
			for _, y := range p.Years {
				for _, m := range y.Months {
					if m < 1 || m > 12 {
						return fmt.Errorf("species %d project %s year %d: month %d out of range", e.SpeciesID, code, y.Year, m)
					}
				}
			}
		}
	}
	return nil
}

func normalizeProjects(in map[string]ProjectAvailability) map[string]ProjectAvailability {
	out := make(map[string]ProjectAvailability, len(in))
	for code, p := range in {
		byYear := map[int][]int{}
		for _, y := range p.Years {
			byYear[y.Year] = append(byYear[y.Year], y.Months...)
		}
		years := make([]YearAvailability, 0, len(byYear))
		for year, months := range byYear {
			years = append(years, YearAvailability{Year: year, Months: normalizeMonths(months)})
		}
		slices.SortFunc(years, func(a, b YearAvailability) int { return a.Year - b.Year })
		out[code] = ProjectAvailability{Years: years}
	}
	return out
}

func normalizeMonths(months []int) []int {
	out := make([]int, 0, len(months))
	for _, m := range months {
		if m >= 1 && m <= 12 {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
