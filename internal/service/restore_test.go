package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/resolve"
)

func TestLoadAbsentOrMalformed(t *testing.T) {
	ctx := context.Background()
	for name, raw := range map[string]*string{
		"absent":    nil,
		"malformed": ptr("{not json"),
		"empty":     ptr("[]"),
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			if raw != nil {
				require.NoError(t, env.store.Set(ctx, StackKey, *raw))
			}
			require.NoError(t, env.svc.Load(ctx))

			st := env.svc.Snapshot()
			require.Len(t, st.Layers, 1)
			assert.Equal(t, DefaultSpeciesID, st.Layers[0].SpeciesID)
			assert.Equal(t, inventory.Period(DefaultYear), st.Layers[0].Year)
		})
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	raw := `[
	  {"layerKey": "a", "aphiaId": 105793, "project": "_ALL", "year": 2017, "month": "all", "palette": "thermal_r", "type": "range"},
	  {"layerKey": "a", "aphiaId": 159353, "project": "_ALL", "year": "all", "month": "all", "palette": "nope", "opacity": 0}
	]`
	require.NoError(t, env.store.Set(ctx, StackKey, raw))
	require.NoError(t, env.svc.Load(ctx))

	st := env.svc.Snapshot()
	require.Len(t, st.Layers, 2)
	assert.Equal(t, "a", st.Layers[0].LayerKey)
	assert.Equal(t, DefaultOpacity, st.Layers[0].Opacity)
	assert.Equal(t, Range, st.Layers[0].Type)
	assert.Equal(t, "thermal_r", st.Layers[0].Palette)

	assert.NotEqual(t, "a", st.Layers[1].LayerKey, "duplicate keys are regenerated")
	assert.Equal(t, 0, st.Layers[1].Opacity)
	assert.Equal(t, DefaultPalette, st.Layers[1].Palette)
	assert.Equal(t, Distribution, st.Layers[1].Type)
	assert.Equal(t, inventory.All, st.Layers[1].Year)
}

func TestReconcileDropsStaleLayers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	raw := `[
	  {"layerKey": "keep", "aphiaId": 105793, "project": "FACT", "year": 2017, "month": 4, "palette": "viridis"},
	  {"layerKey": "gone", "aphiaId": 105793, "project": "OLD", "year": 2017, "month": "all", "palette": "ice"}
	]`
	require.NoError(t, env.store.Set(ctx, StackKey, raw))
	require.NoError(t, env.svc.Load(ctx))

	kept, dropped, err := env.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, dropped)

	st := env.svc.Snapshot()
	assert.Equal(t, []string{"keep"}, st.Keys())
	assert.Equal(t, 0, st.ActiveIndex)

	persisted, ok, err := env.store.Get(ctx, StackKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, persisted, "gone")
}

func TestReconcileFallsBackToFirstEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	raw := `[{"layerKey": "gone", "aphiaId": 105793, "project": "OLD", "year": 2017, "month": "all", "palette": "ice"}]`
	require.NoError(t, env.store.Set(ctx, StackKey, raw))
	require.NoError(t, env.svc.Load(ctx))

	// A fresh inventory where cobia comes first.
	env.inv.Swap(inventory.Build([]inventory.Row{
		row(159353, "cobia", "FACT", 2014, 2),
		row(159353, "cobia", "FACT", 2012, 5),
		row(105793, "bull shark", "FACT", 2017, 3),
	}))

	kept, dropped, err := env.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, kept)
	assert.Equal(t, 1, dropped)

	st := env.svc.Snapshot()
	require.Len(t, st.Layers, 1)
	got := st.Layers[0]
	assert.Equal(t, 159353, got.SpeciesID)
	assert.Equal(t, inventory.AllProjects, got.Project)
	assert.Equal(t, inventory.Period(2012), got.Year)
	assert.Equal(t, inventory.All, got.Month)
	assert.Equal(t, DefaultPalette, got.Palette)
	assert.Equal(t, Distribution, got.Type)
}

func TestReconcileWithoutInventory(t *testing.T) {
	env := newTestEnv(t)
	env.inv.Swap(nil)
	_, _, err := env.svc.Reconcile(context.Background())
	assert.ErrorIs(t, err, resolve.ErrNoInventory)
}

func TestReconcileSchedulesLoads(t *testing.T) {
	env := newTestEnv(t)
	rec := &recordingScheduler{}
	env.svc.SetScheduler(rec)

	_, _, err := env.svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.loads, 1)
	assert.Equal(t, "k1", rec.loads[0].Layer.LayerKey)
}
