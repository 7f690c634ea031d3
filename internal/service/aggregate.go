package service

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-atp/internal/metrics"
	"github.com/joeblew999/plat-atp/internal/upstream"
)

// Token identifies one generation of a layer's parameters. Load results
// carry the token they were started under and are discarded once the layer
// has moved on.
type Token uint64

type layerAggregate struct {
	gen      Token
	loading  bool
	noData   bool
	hasLevel bool
	level    float64
	projects []string
	hasBound bool
	bound    orb.Bound
}

// Aggregator collects per-layer load results and derives the global
// maximum level and the union of shown project codes.
type Aggregator struct {
	mu     sync.RWMutex
	layers map[string]*layerAggregate
	next   Token
	logger *slog.Logger
}

// NewAggregator creates an empty aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{layers: make(map[string]*layerAggregate), logger: logger}
}

// Begin starts a new generation for key. Results reported under earlier
// tokens are ignored from now on. The previous results stay visible until
// the new load reports.
func (a *Aggregator) Begin(key string) Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	la, ok := a.layers[key]
	if !ok {
		la = &layerAggregate{}
		a.layers[key] = la
	}
	la.gen = a.next
	la.loading = true
	return la.gen
}

// Current returns the live token for key.
func (a *Aggregator) Current(key string) (Token, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	la, ok := a.layers[key]
	if !ok {
		return 0, false
	}
	return la.gen, true
}

// live returns the aggregate for key when tok is still current. The caller
// holds the write lock.
func (a *Aggregator) live(key string, tok Token) *layerAggregate {
	la, ok := a.layers[key]
	if !ok || la.gen != tok {
		metrics.StaleReports.Inc()
		a.logger.Debug("stale layer report dropped", "layer", key, "token", tok)
		return nil
	}
	return la
}

// ReportLevel records the layer's maximum level. It returns false when the
// report is stale.
func (a *Aggregator) ReportLevel(key string, tok Token, level float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	la := a.live(key, tok)
	if la == nil {
		return false
	}
	la.level, la.hasLevel, la.noData = level, true, false
	return true
}

// ReportShownProjects records the project codes present in the layer's data.
func (a *Aggregator) ReportShownProjects(key string, tok Token, codes []string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	la := a.live(key, tok)
	if la == nil {
		return false
	}
	la.projects = slices.Clone(codes)
	la.noData = false
	return true
}

// ReportExtent records the bounding box of the layer's features.
func (a *Aggregator) ReportExtent(key string, tok Token, b orb.Bound) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	la := a.live(key, tok)
	if la == nil {
		return false
	}
	la.bound, la.hasBound = b, true
	return true
}

// ReportSummary replaces everything recorded for the layer with one load's
// summary. Level or extent missing from sum are cleared.
func (a *Aggregator) ReportSummary(key string, tok Token, sum upstream.Summary) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	la := a.live(key, tok)
	if la == nil {
		return false
	}
	*la = layerAggregate{
		gen:      la.gen,
		loading:  la.loading,
		hasLevel: sum.HasLevel,
		level:    sum.MaxLevel,
		projects: slices.Clone(sum.Projects),
		hasBound: sum.HasBound,
		bound:    sum.Bound,
	}
	if !sum.HasLevel {
		la.level = 0
	}
	return true
}

// ReportFailure marks the layer as having no data and clears its
// contribution to the aggregates.
func (a *Aggregator) ReportFailure(key string, tok Token) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	la := a.live(key, tok)
	if la == nil {
		return false
	}
	*la = layerAggregate{gen: la.gen, noData: true}
	return true
}

// Done marks the load for tok finished.
func (a *Aggregator) Done(key string, tok Token) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if la, ok := a.layers[key]; ok && la.gen == tok {
		la.loading = false
	}
}

// ClearLayer removes every trace of key. Later reports for it are stale.
func (a *Aggregator) ClearLayer(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.layers, key)
}

// Prune drops entries whose key is not in live.
func (a *Aggregator) Prune(live []string) {
	keep := make(map[string]bool, len(live))
	for _, k := range live {
		keep[k] = true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.layers {
		if !keep[k] {
			delete(a.layers, k)
		}
	}
}

// GlobalMaxLevel returns the maximum level over all reporting layers.
func (a *Aggregator) GlobalMaxLevel() (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var (
		best  float64
		found bool
	)
	for _, la := range a.layers {
		if !la.hasLevel {
			continue
		}
		if !found || la.level > best {
			best, found = la.level, true
		}
	}
	return best, found
}

// LayerLevel returns the maximum level reported for key.
func (a *Aggregator) LayerLevel(key string) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	la, ok := a.layers[key]
	if !ok || !la.hasLevel {
		return 0, false
	}
	return la.level, true
}

// GlobalShownProjects returns the sorted union of shown project codes.
func (a *Aggregator) GlobalShownProjects() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	seen := map[string]bool{}
	out := []string{}
	for _, la := range a.layers {
		for _, c := range la.projects {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Extent returns the union of the reported layer extents.
func (a *Aggregator) Extent() (orb.Bound, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var (
		b     orb.Bound
		found bool
	)
	for _, la := range a.layers {
		if !la.hasBound {
			continue
		}
		if found {
			b = b.Union(la.bound)
		} else {
			b, found = la.bound, true
		}
	}
	return b, found
}

// Loading returns the keys of layers with a load in flight.
func (a *Aggregator) Loading() []string {
	return a.keysWhere(func(la *layerAggregate) bool { return la.loading })
}

// NoData returns the keys of layers whose last load produced nothing.
func (a *Aggregator) NoData() []string {
	return a.keysWhere(func(la *layerAggregate) bool { return la.noData })
}

func (a *Aggregator) keysWhere(pred func(*layerAggregate) bool) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := []string{}
	for k, la := range a.layers {
		if pred(la) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// LayerStatus is the load state of one layer.
type LayerStatus struct {
	Loading  bool     `json:"loading" doc:"A load is in flight"`
	NoData   bool     `json:"noData" doc:"The last load returned no usable data"`
	MaxLevel *float64 `json:"maxLevel,omitempty" doc:"Maximum level in the layer's data"`
	Projects []string `json:"projects,omitempty" doc:"Project codes present in the layer's data"`
}

// Status returns the load state for key.
func (a *Aggregator) Status(key string) LayerStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	la, ok := a.layers[key]
	if !ok {
		return LayerStatus{}
	}
	st := LayerStatus{Loading: la.loading, NoData: la.noData, Projects: slices.Clone(la.projects)}
	if la.hasLevel {
		lvl := la.level
		st.MaxLevel = &lvl
	}
	return st
}
