package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-atp/internal/logging"
	"github.com/joeblew999/plat-atp/internal/upstream"
)

type fakeSource struct {
	mu    sync.Mutex
	calls []upstream.LayerQuery
	data  map[string]*geojson.FeatureCollection // by query URL
	err   error
}

func (f *fakeSource) Layer(ctx context.Context, q upstream.LayerQuery) (*geojson.FeatureCollection, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	fc, ok := f.data[q.URL("")]
	if !ok {
		return nil, fmt.Errorf("%w: %s", upstream.ErrNotFound, q.URL(""))
	}
	return fc, nil
}

func collection(level float64, codes string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{-80, 25})
	f.Properties["level"] = level
	f.Properties["project_codes"] = codes
	fc.Append(f)
	return fc
}

func TestLoaderReports(t *testing.T) {
	agg := NewAggregator(logging.Discard())
	bus := NewEventBus()
	events := bus.Subscribe()
	defer bus.Unsubscribe(events)

	layer := DefaultLayer("a")
	src := &fakeSource{data: map[string]*geojson.FeatureCollection{
		layer.Query().URL(""): collection(6, "FACT, TQCS"),
	}}
	l := NewLoader(context.Background(), src, agg, bus, logging.Discard())

	require.NoError(t, l.Load(context.Background(), LayerLoad{Layer: layer, Token: agg.Begin("a")}))

	got, ok := agg.GlobalMaxLevel()
	require.True(t, ok)
	assert.Equal(t, 6.0, got)
	assert.Equal(t, []string{"FACT", "TQCS"}, agg.GlobalShownProjects())
	assert.Empty(t, agg.Loading())
	_, ok = agg.Extent()
	assert.True(t, ok)

	ev := <-events
	assert.Equal(t, ActionLoaded, ev.Action)
	assert.Equal(t, "a", ev.ID)
}

func TestReloadWithoutLevelClearsOldLevel(t *testing.T) {
	agg := NewAggregator(logging.Discard())
	layer := DefaultLayer("a")
	src := &fakeSource{data: map[string]*geojson.FeatureCollection{
		layer.Query().URL(""): collection(7, "FACT"),
	}}
	l := NewLoader(context.Background(), src, agg, nil, logging.Discard())
	require.NoError(t, l.Load(context.Background(), LayerLoad{Layer: layer, Token: agg.Begin("a")}))
	got, ok := agg.GlobalMaxLevel()
	require.True(t, ok)
	assert.Equal(t, 7.0, got)

	reloaded := geojson.NewFeatureCollection()
	f := geojson.NewFeature(nil)
	f.Properties["project_codes"] = "TQCS"
	reloaded.Append(f)
	src.data[layer.Query().URL("")] = reloaded
	require.NoError(t, l.Load(context.Background(), LayerLoad{Layer: layer, Token: agg.Begin("a")}))

	_, ok = agg.GlobalMaxLevel()
	assert.False(t, ok, "the level belongs to the previous load")
	_, ok = agg.LayerLevel("a")
	assert.False(t, ok)
	_, ok = agg.Extent()
	assert.False(t, ok, "the extent belongs to the previous load")
	assert.Equal(t, []string{"TQCS"}, agg.GlobalShownProjects())
	assert.False(t, agg.Status("a").NoData)
	assert.Empty(t, agg.Loading())
}

func TestLoaderFailureMarksNoData(t *testing.T) {
	agg := NewAggregator(logging.Discard())
	src := &fakeSource{data: map[string]*geojson.FeatureCollection{}}
	l := NewLoader(context.Background(), src, agg, nil, logging.Discard())

	layer := DefaultLayer("a")
	tok := agg.Begin("a")
	agg.ReportLevel("a", tok, 3)

	err := l.Load(context.Background(), LayerLoad{Layer: layer, Token: agg.Begin("a")})
	assert.ErrorIs(t, err, upstream.ErrNotFound)
	assert.Equal(t, []string{"a"}, agg.NoData())
	_, ok := agg.GlobalMaxLevel()
	assert.False(t, ok)

	src.data[layer.Query().URL("")] = geojson.NewFeatureCollection()
	err = l.Load(context.Background(), LayerLoad{Layer: layer, Token: agg.Begin("a")})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestLoaderDropsSupersededResult(t *testing.T) {
	agg := NewAggregator(logging.Discard())
	layer := DefaultLayer("a")
	src := &fakeSource{data: map[string]*geojson.FeatureCollection{
		layer.Query().URL(""): collection(9, "OLD"),
	}}
	l := NewLoader(context.Background(), src, agg, nil, logging.Discard())

	old := agg.Begin("a")
	cur := agg.Begin("a")
	require.NoError(t, l.Load(context.Background(), LayerLoad{Layer: layer, Token: old}))

	_, ok := agg.GlobalMaxLevel()
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, agg.Loading(), "the current load is still pending")
	live, _ := agg.Current("a")
	assert.Equal(t, cur, live)
}

func TestLoadAll(t *testing.T) {
	agg := NewAggregator(logging.Discard())
	a, b := DefaultLayer("a"), DefaultLayer("b")
	b.Type = Range
	src := &fakeSource{data: map[string]*geojson.FeatureCollection{
		a.Query().URL(""): collection(2, "FACT"),
		b.Query().URL(""): collection(8, "OTN"),
	}}
	l := NewLoader(context.Background(), src, agg, nil, logging.Discard())
	l.Concurrency = 1

	err := l.LoadAll(context.Background(), []LayerLoad{
		{Layer: a, Token: agg.Begin("a")},
		{Layer: b, Token: agg.Begin("b")},
	})
	require.NoError(t, err)
	got, _ := agg.GlobalMaxLevel()
	assert.Equal(t, 8.0, got)
	assert.Equal(t, []string{"FACT", "OTN"}, agg.GlobalShownProjects())

	src.err = errors.New("connection refused")
	err = l.LoadAll(context.Background(), []LayerLoad{{Layer: a, Token: agg.Begin("a")}})
	assert.Error(t, err)
}

func TestScheduledLoadsFromStack(t *testing.T) {
	env := newTestEnv(t)
	src := &fakeSource{data: map[string]*geojson.FeatureCollection{}}
	l := NewLoader(context.Background(), src, env.agg, env.bus, logging.Discard())
	env.svc.SetScheduler(l)

	first := env.svc.Snapshot().Active()
	src.data[first.Query().URL("")] = collection(5, "FACT")

	env.svc.AddLayer(context.Background(), 0, false)
	l.Wait()

	got, ok := env.agg.GlobalMaxLevel()
	require.True(t, ok)
	assert.Equal(t, 5.0, got)
	assert.Len(t, src.calls, 1)
}
