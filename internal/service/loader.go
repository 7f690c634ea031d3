package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-atp/internal/metrics"
	"github.com/joeblew999/plat-atp/internal/upstream"
)

// LayerSource fetches a layer's features.
type LayerSource interface {
	Layer(ctx context.Context, q upstream.LayerQuery) (*geojson.FeatureCollection, error)
}

// ErrNoData is reported when a layer load returns no features.
var ErrNoData = errors.New("layer has no data")

// Loader fetches layer data and reports the summaries to the aggregator.
// Results are reported under the token the load was started with, so a
// load that was superseded or whose layer was deleted changes nothing.
type Loader struct {
	src    LayerSource
	agg    *Aggregator
	bus    *EventBus
	logger *slog.Logger

	// Concurrency caps parallel fetches in LoadAll. Zero means unlimited.
	Concurrency int

	ctx context.Context
	wg  sync.WaitGroup
}

// NewLoader creates a loader. Background loads started through Schedule
// run under ctx.
func NewLoader(ctx context.Context, src LayerSource, agg *Aggregator, bus *EventBus, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, agg: agg, bus: bus, logger: logger, ctx: ctx}
}

// Schedule starts each load in the background.
func (l *Loader) Schedule(loads []LayerLoad) {
	for _, ld := range loads {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			_ = l.Load(l.ctx, ld)
		}()
	}
}

// Wait blocks until every scheduled load has finished.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Load fetches one layer and reports its summary. A failed or empty load
// clears the layer's aggregates and marks it as having no data.
func (l *Loader) Load(ctx context.Context, ld LayerLoad) error {
	key := ld.Layer.LayerKey
	defer l.agg.Done(key, ld.Token)

	fc, err := l.src.Layer(ctx, ld.Layer.Query())
	if err == nil && (fc == nil || len(fc.Features) == 0) {
		err = ErrNoData
	}
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrNoData) || errors.Is(err, upstream.ErrNotFound) {
			outcome = "empty"
		}
		metrics.LayerLoads.WithLabelValues(outcome).Inc()
		if l.agg.ReportFailure(key, ld.Token) {
			l.logger.Warn("layer data load failed", "layer", key, "error", err)
			l.publish(key)
		}
		return err
	}

	sum := upstream.Summarize(fc)
	metrics.LayerLoads.WithLabelValues("ok").Inc()

	if l.agg.ReportSummary(key, ld.Token, sum) {
		l.logger.Debug("layer loaded", "layer", key, "features", sum.Features, "max_level", sum.MaxLevel)
		l.publish(key)
	}
	return nil
}

// LoadAll loads every layer concurrently and waits for them. Per-layer
// failures are reported to the aggregator; the first error is returned.
func (l *Loader) LoadAll(ctx context.Context, loads []LayerLoad) error {
	g, ctx := errgroup.WithContext(ctx)
	if l.Concurrency > 0 {
		g.SetLimit(l.Concurrency)
	}
	for _, ld := range loads {
		g.Go(func() error {
			if err := l.Load(ctx, ld); err != nil && !errors.Is(err, ErrNoData) && !errors.Is(err, upstream.ErrNotFound) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (l *Loader) publish(key string) {
	if l.bus != nil {
		l.bus.Publish(Event{Resource: "layer", Action: ActionLoaded, ID: key})
	}
}
