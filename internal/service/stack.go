package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/metrics"
	"github.com/joeblew999/plat-atp/internal/resolve"
	"github.com/joeblew999/plat-atp/internal/store"
)

// StackKey is the store key the layer list is persisted under.
const StackKey = "atp-layerData"

var (
	// ErrResolution wraps resolver failures from UpdateActive.
	ErrResolution = errors.New("layer update does not resolve")
	// ErrInvalidUpdate is returned for style fields outside their domain.
	ErrInvalidUpdate = errors.New("invalid layer update")
)

// Chooser returns a value in [0, n).
type Chooser func(n int) int

// RandomChooser picks uniformly with the global source.
func RandomChooser() Chooser {
	return func(n int) int { return rand.IntN(n) }
}

// NewLayerKey returns a fresh unique layer key.
func NewLayerKey() string {
	return uuid.NewString()
}

// LayerLoad asks for a layer's data under a generation token.
type LayerLoad struct {
	Layer LayerConfig
	Token Token
}

// Scheduler starts data loads for layers whose parameters changed.
type Scheduler interface {
	Schedule(loads []LayerLoad)
}

// StackConfig wires a StackService.
type StackConfig struct {
	Inventory  *inventory.Holder
	Palettes   *Palettes
	Aggregator *Aggregator
	Store      store.Store
	Bus        *EventBus
	Choose     Chooser
	NewKey     func() string
	Logger     *slog.Logger
}

// StackService owns the layer stack. Operations are serialized by a mutex
// and either commit completely or leave the stack untouched.
type StackService struct {
	mu     sync.Mutex
	layers []LayerConfig
	active int

	inv      *inventory.Holder
	palettes *Palettes
	agg      *Aggregator
	store    store.Store
	bus      *EventBus
	sched    Scheduler
	choose   Chooser
	newKey   func() string
	logger   *slog.Logger
}

// NewStackService creates a service holding the built-in default layer.
// Call Load and Reconcile to bring back a persisted stack.
func NewStackService(cfg StackConfig) *StackService {
	s := &StackService{
		inv:      cfg.Inventory,
		palettes: cfg.Palettes,
		agg:      cfg.Aggregator,
		store:    cfg.Store,
		bus:      cfg.Bus,
		choose:   cfg.Choose,
		newKey:   cfg.NewKey,
		logger:   cfg.Logger,
	}
	if s.inv == nil {
		s.inv = &inventory.Holder{}
	}
	if s.palettes == nil {
		s.palettes = DefaultPalettes()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.agg == nil {
		s.agg = NewAggregator(s.logger)
	}
	if s.store == nil {
		s.store = store.NewMemory()
	}
	if s.bus == nil {
		s.bus = NewEventBus()
	}
	if s.choose == nil {
		s.choose = RandomChooser()
	}
	if s.newKey == nil {
		s.newKey = NewLayerKey
	}
	s.layers = []LayerConfig{DefaultLayer(s.newKey())}
	metrics.StackSize.Set(1)
	return s
}

// SetScheduler sets the receiver of data load requests.
func (s *StackService) SetScheduler(sch Scheduler) {
	s.mu.Lock()
	s.sched = sch
	s.mu.Unlock()
}

// Aggregator returns the aggregator the service reports to.
func (s *StackService) Aggregator() *Aggregator { return s.agg }

// Palettes returns the palette table.
func (s *StackService) Palettes() *Palettes { return s.palettes }

// Bus returns the event bus stack changes are published on.
func (s *StackService) Bus() *EventBus { return s.bus }

// Inventory returns the current inventory snapshot, or nil.
func (s *StackService) Inventory() *inventory.Inventory { return s.inv.Get() }

// Snapshot returns a copy of the stack.
func (s *StackService) Snapshot() Stack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *StackService) snapshot() Stack {
	return Stack{Layers: slices.Clone(s.layers), ActiveIndex: s.active}
}

// AddLayer duplicates the layer at src onto the top of the stack and makes
// it active. It is a no-op when the stack is full or src is out of range.
func (s *StackService) AddLayer(ctx context.Context, src int, randomPalette bool) (Stack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.layers) >= MaxLayers || src < 0 || src >= len(s.layers) {
		metrics.StackOps.WithLabelValues("add", "noop").Inc()
		return s.snapshot(), false
	}

	layer := s.layers[src]
	layer.LayerKey = s.uniqueKey()
	if randomPalette {
		if name, ok := s.palettes.Pick(s.layers, s.choose); ok {
			layer.Palette = name
		}
	}

	s.layers = slices.Insert(s.layers, 0, layer)
	s.active = 0
	s.schedule(layer)
	s.commit(ctx, "add", Event{Resource: "stack", Action: ActionAdded, ID: layer.LayerKey})
	return s.snapshot(), true
}

// UpdateActive applies upd to the active layer. Selection fields go through
// the availability resolver; a failure leaves the stack unchanged.
func (s *StackService) UpdateActive(ctx context.Context, upd LayerUpdate) (Stack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.layers[s.active]
	next, err := s.apply(cur, upd)
	if err != nil {
		metrics.StackOps.WithLabelValues("update", "rejected").Inc()
		s.logger.Warn("layer update rejected", "layer", cur.LayerKey, "error", err)
		return s.snapshot(), err
	}
	if next == cur {
		metrics.StackOps.WithLabelValues("update", "noop").Inc()
		return s.snapshot(), nil
	}

	s.layers[s.active] = next
	if !next.sameData(cur) {
		s.schedule(next)
	}
	s.commit(ctx, "update", Event{Resource: "stack", Action: ActionUpdated, ID: next.LayerKey})
	return s.snapshot(), nil
}

func (s *StackService) apply(cur LayerConfig, upd LayerUpdate) (LayerConfig, error) {
	next := cur
	if upd.Palette != nil {
		if !s.palettes.Has(*upd.Palette) {
			return cur, fmt.Errorf("%w: unknown palette %q", ErrInvalidUpdate, *upd.Palette)
		}
		next.Palette = *upd.Palette
	}
	if upd.Opacity != nil {
		if *upd.Opacity < 0 || *upd.Opacity > 100 {
			return cur, fmt.Errorf("%w: opacity %d out of range", ErrInvalidUpdate, *upd.Opacity)
		}
		next.Opacity = *upd.Opacity
	}
	if upd.Type != nil {
		if !upd.Type.Valid() {
			return cur, fmt.Errorf("%w: layer type %q", ErrInvalidUpdate, *upd.Type)
		}
		next.Type = *upd.Type
	}

	sel := upd.selection()
	if sel.Empty() {
		return next, nil
	}
	resolved, err := resolve.New(s.inv.Get()).Resolve(cur.Selection(), sel)
	if err != nil {
		metrics.ResolutionFailures.WithLabelValues(failureReason(err)).Inc()
		return cur, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	return next.withSelection(resolved), nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, resolve.ErrUnknownSpecies):
		return "species"
	case errors.Is(err, resolve.ErrUnknownProject):
		return "project"
	case errors.Is(err, resolve.ErrNoInventory):
		return "inventory"
	}
	return "other"
}

// SetActive makes the layer at i the editor target.
func (s *StackService) SetActive(i int) (Stack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.layers) {
		metrics.StackOps.WithLabelValues("select", "noop").Inc()
		return s.snapshot(), false
	}
	if i != s.active {
		s.active = i
		metrics.StackOps.WithLabelValues("select", "changed").Inc()
		s.bus.Publish(Event{Resource: "stack", Action: ActionActive, ID: s.layers[i].LayerKey})
	}
	return s.snapshot(), true
}

// MoveLayer moves the layer at i one position up (dir -1) or down (dir +1).
// The active layer keeps its identity across the move.
func (s *StackService) MoveLayer(ctx context.Context, i, dir int) (Stack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := i + dir
	if (dir != -1 && dir != 1) || i < 0 || i >= len(s.layers) || target < 0 || target >= len(s.layers) {
		metrics.StackOps.WithLabelValues("move", "noop").Inc()
		return s.snapshot(), false
	}

	moved := s.layers[i]
	s.layers = slices.Delete(s.layers, i, i+1)
	s.layers = slices.Insert(s.layers, target, moved)
	switch s.active {
	case i:
		s.active = target
	case target:
		s.active = i
	}
	s.commit(ctx, "move", Event{Resource: "stack", Action: ActionMoved, ID: moved.LayerKey})
	return s.snapshot(), true
}

// DeleteLayer removes the layer at i. The last layer cannot be deleted.
func (s *StackService) DeleteLayer(ctx context.Context, i int) (Stack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.layers) <= 1 || i < 0 || i >= len(s.layers) {
		metrics.StackOps.WithLabelValues("delete", "noop").Inc()
		return s.snapshot(), false
	}

	removed := s.layers[i]
	s.layers = slices.Delete(s.layers, i, i+1)
	if s.active > len(s.layers)-1 {
		s.active--
	}
	s.agg.ClearLayer(removed.LayerKey)
	s.commit(ctx, "delete", Event{Resource: "stack", Action: ActionDeleted, ID: removed.LayerKey})
	return s.snapshot(), true
}

// Step moves the active layer's year or month to the previous (dir -1) or
// next (dir +1) available value. It is a no-op on "all" or at an edge.
func (s *StackService) Step(ctx context.Context, field string, dir int) (Stack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir != -1 && dir != 1 {
		return s.snapshot(), false
	}
	cur := s.layers[s.active]
	r := resolve.New(s.inv.Get())

	var (
		upd LayerUpdate
		to  inventory.Period
		ok  bool
	)
	switch field {
	case "year":
		to, ok = r.StepYear(cur.SpeciesID, cur.Project, cur.Year, dir)
		upd.Year = &to
	case "month":
		to, ok = r.StepMonth(cur.SpeciesID, cur.Project, cur.Year, cur.Month, dir)
		upd.Month = &to
	}
	if !ok {
		metrics.StackOps.WithLabelValues("step", "noop").Inc()
		return s.snapshot(), false
	}

	next, err := s.apply(cur, upd)
	if err != nil || next == cur {
		metrics.StackOps.WithLabelValues("step", "noop").Inc()
		return s.snapshot(), false
	}
	s.layers[s.active] = next
	s.schedule(next)
	s.commit(ctx, "step", Event{Resource: "stack", Action: ActionUpdated, ID: next.LayerKey})
	return s.snapshot(), true
}

// Reload starts a fresh data load for every layer.
func (s *StackService) Reload() []LayerLoad {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule(s.layers...)
}

// schedule opens a new generation for each layer and hands the loads to the
// scheduler. The caller holds the lock.
func (s *StackService) schedule(layers ...LayerConfig) []LayerLoad {
	loads := make([]LayerLoad, len(layers))
	for i, l := range layers {
		loads[i] = LayerLoad{Layer: l, Token: s.agg.Begin(l.LayerKey)}
	}
	if s.sched != nil && len(loads) > 0 {
		s.sched.Schedule(loads)
	}
	return loads
}

// commit persists the stack, prunes stale aggregates and publishes ev. The
// caller holds the lock.
func (s *StackService) commit(ctx context.Context, op string, ev Event) {
	metrics.StackOps.WithLabelValues(op, "changed").Inc()
	metrics.StackSize.Set(float64(len(s.layers)))

	s.agg.Prune(s.snapshot().Keys())
	if err := s.persist(ctx); err != nil {
		s.logger.Error("persisting layer stack", "error", err)
	}
	s.bus.Publish(ev)
}

func (s *StackService) persist(ctx context.Context) error {
	data, err := json.Marshal(s.layers)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, StackKey, string(data))
}

func (s *StackService) uniqueKey() string {
	for range 8 {
		if k := s.newKey(); k != "" && !s.hasKey(k) {
			return k
		}
	}
	return NewLayerKey()
}

func (s *StackService) hasKey(k string) bool {
	return slices.ContainsFunc(s.layers, func(l LayerConfig) bool { return l.LayerKey == k })
}
