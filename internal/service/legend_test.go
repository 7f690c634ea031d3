package service

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLegend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, ok := env.svc.AddLayer(ctx, 0, true)
	require.True(t, ok)
	rng := Range
	_, err := env.svc.UpdateActive(ctx, LayerUpdate{Type: &rng})
	require.NoError(t, err)

	// k2 is the range layer on top, k1 the default distribution layer.
	tokens := map[string]Token{}
	for _, ld := range env.svc.Reload() {
		tokens[ld.Layer.LayerKey] = ld.Token
	}
	env.agg.ReportLevel("k1", tokens["k1"], 4)
	env.agg.ReportShownProjects("k1", tokens["k1"], []string{"TQCS", "FACT"})
	env.agg.ReportExtent("k1", tokens["k1"], orb.Bound{Min: orb.Point{-82, 24}, Max: orb.Point{-80, 27}})
	env.agg.Done("k1", tokens["k1"])

	lg := BuildLegend(env.svc.Snapshot(), env.agg, env.svc.Palettes(), env.inv.Get())
	assert.True(t, lg.HasLevel)
	assert.Equal(t, 4.0, lg.MaxLevel)
	assert.Equal(t, []string{"FACT", "TQCS"}, lg.Projects)
	assert.Equal(t, []string{"k2"}, lg.Loading)
	assert.Equal(t, []float64{-82, 24, -80, 27}, lg.Extent)

	require.Len(t, lg.Groups, 2)
	assert.Equal(t, Distribution, lg.Groups[0].Type)
	require.Len(t, lg.Groups[0].Layers, 1)
	assert.Equal(t, "k1", lg.Groups[0].Layers[0].LayerKey)
	assert.Equal(t, "bull shark", lg.Groups[0].Layers[0].Species)
	assert.NotEmpty(t, lg.Groups[0].Layers[0].Stops)
	assert.Equal(t, Range, lg.Groups[1].Type)
	assert.Equal(t, "k2", lg.Groups[1].Layers[0].LayerKey)
}

func TestBuildLegendEmpty(t *testing.T) {
	env := newTestEnv(t)
	lg := BuildLegend(env.svc.Snapshot(), env.agg, env.svc.Palettes(), nil)
	assert.False(t, lg.HasLevel)
	assert.Empty(t, lg.Projects)
	assert.Nil(t, lg.Extent)
	require.Len(t, lg.Groups, 1)
	assert.Equal(t, "Unknown", lg.Groups[0].Layers[0].Species)
}
