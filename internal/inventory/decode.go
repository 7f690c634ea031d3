package inventory

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"
)

type wireYear struct {
	Year   Period `json:"year"`
	Months []int  `json:"months"`
}

type wireEntry struct {
	SpeciesID      int    `json:"aphiaId"`
	CommonName     string `json:"speciesCommonName"`
	ScientificName string `json:"speciesScientificName"`
	ByProject      map[string]struct {
		Years []wireYear `json:"years"`
	} `json:"byProject"`
}

// Decode parses the upstream inventory document: a JSON array of species
// entries. Year records keyed "all" are aggregate placeholders and are
// skipped; "all" stays a virtual selector value.
func Decode(r io.Reader) (*Inventory, error) {
	var wire []wireEntry
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding inventory: %w", err)
	}

	entries := make([]Entry, 0, len(wire))
	for _, w := range wire {
		e := Entry{
			SpeciesID:      w.SpeciesID,
			CommonName:     w.CommonName,
			ScientificName: w.ScientificName,
			ByProject:      make(map[string]ProjectAvailability, len(w.ByProject)),
		}
		for code, p := range w.ByProject {
			var years []YearAvailability
			for _, y := range p.Years {
				if y.Year.IsAll() {
					continue
				}
				years = append(years, YearAvailability{Year: y.Year.Int(), Months: y.Months})
			}
			if len(years) == 0 {
				continue
			}
			e.ByProject[code] = ProjectAvailability{Years: years}
		}
		entries = append(entries, e)
	}
	return New(entries), nil
}

// Row is one flat availability record: a species had data for a project in
// a given year and month.
type Row struct {
	SpeciesID      int
	CommonName     string
	ScientificName string
	Project        string
	Year           int
	Month          int
}

// Build assembles an inventory from flat rows. When the rows carry no _ALL
// project for a species it is synthesized as the union of its projects.
// Species order follows first appearance.
func Build(rows []Row) *Inventory {
	type acc struct {
		entry    Entry
		projects map[string]map[int][]int
	}
	var order []int
	bySpecies := map[int]*acc{}

	for _, r := range rows {
		a, ok := bySpecies[r.SpeciesID]
		if !ok {
			a = &acc{
				entry: Entry{
					SpeciesID:      r.SpeciesID,
					CommonName:     orUnknown(r.CommonName),
					ScientificName: orUnknown(r.ScientificName),
				},
				projects: map[string]map[int][]int{},
			}
			bySpecies[r.SpeciesID] = a
			order = append(order, r.SpeciesID)
		}
		project := r.Project
		if project == "" {
			project = AllProjects
		}
		if a.projects[project] == nil {
			a.projects[project] = map[int][]int{}
		}
		a.projects[project][r.Year] = append(a.projects[project][r.Year], r.Month)
	}

	entries := make([]Entry, 0, len(order))
	for _, id := range order {
		a := bySpecies[id]
		if _, ok := a.projects[AllProjects]; !ok {
			union := map[int][]int{}
			for _, years := range a.projects {
				for y, months := range years {
					union[y] = append(union[y], months...)
				}
			}
			a.projects[AllProjects] = union
		}
		a.entry.ByProject = make(map[string]ProjectAvailability, len(a.projects))
		for code, years := range a.projects {
			p := ProjectAvailability{}
			for y, months := range years {
				p.Years = append(p.Years, YearAvailability{Year: y, Months: months})
			}
			a.entry.ByProject[code] = p
		}
		entries = append(entries, a.entry)
	}
	return New(entries)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// Holder guards the current inventory snapshot. The snapshot is replaced
// wholesale; readers never see a partially built inventory.
type Holder struct {
	mu  sync.RWMutex
	inv *Inventory
}

// Get returns the current snapshot, or nil before the first load.
func (h *Holder) Get() *Inventory {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.inv
}

// Swap installs a new snapshot and returns the previous one.
func (h *Holder) Swap(inv *Inventory) *Inventory {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.inv
	h.inv = inv
	return prev
}

// Loaded reports whether a non-empty snapshot is installed.
func (h *Holder) Loaded() bool {
	return h.Get().Len() > 0
}

// Rows flattens the inventory into one row per species, project, year and
// month, in species order. Build(inv.Rows()) reproduces inv. A year with no
// months yields a single row with Month 0.
func (inv *Inventory) Rows() []Row {
	var rows []Row
	for _, e := range inv.Species() {
		codes := make([]string, 0, len(e.ByProject))
		for code := range e.ByProject {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			for _, y := range e.ByProject[code].Years {
				base := Row{
					SpeciesID:      e.SpeciesID,
					CommonName:     e.CommonName,
					ScientificName: e.ScientificName,
					Project:        code,
					Year:           y.Year,
				}
				if len(y.Months) == 0 {
					rows = append(rows, base)
					continue
				}
				for _, m := range y.Months {
					r := base
					r.Month = m
					rows = append(rows, r)
				}
			}
		}
	}
	return rows
}
