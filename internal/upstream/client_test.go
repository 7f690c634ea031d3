package upstream

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-atp/internal/inventory"
	"github.com/joeblew999/plat-atp/internal/logging"
)

const layerJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[-81, 30], [-80, 30], [-80, 31], [-81, 30]]]},
     "properties": {"level": 3, "project_codes": "FACT, TQCS"}},
    {"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[-79, 29], [-78, 29], [-78, 32], [-79, 29]]]},
     "properties": {"level": 7.5, "project_codes": "TQCS,BLKTP"}}
  ]
}`

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, MediaURL: srv.URL + "/media", Logger: logging.Discard()})
}

func TestLayerQueryURL(t *testing.T) {
	tests := []struct {
		q    LayerQuery
		want string
	}{
		{LayerQuery{SpeciesID: 105793, Type: "distribution", Year: 2017, Project: inventory.AllProjects},
			"http://x/atp/105793/distribution/2017"},
		{LayerQuery{SpeciesID: 105793, Type: "range", Year: 2017, Month: 4, Project: "FACT"},
			"http://x/atp/105793/range/2017?month=4&project=FACT"},
		{LayerQuery{SpeciesID: 1, Type: "distribution", Year: inventory.All},
			"http://x/atp/1/distribution/all"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.q.URL("http://x"))
	}
}

func TestInventoryAndCitations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/atp/inventory", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"aphiaId": 5, "speciesCommonName": "tarpon", "byProject": {"_ALL": {"years": [{"year": 2014, "months": [2]}]}}}]`))
	})
	mux.HandleFunc("/atp/citations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"FACT": {"shortname": "FACT", "citation": "FACT Network", "website": "https://secoora.org/fact/"}}`))
	})
	c := newTestClient(t, mux)

	inv, err := c.Inventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2014}, inv.YearsFor(5, inventory.AllProjects))

	cites, err := c.Citations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FACT Network", cites["FACT"].Citation)
}

func TestLayerAndSummary(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/atp/105793/distribution/2017", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("month"))
		w.Write([]byte(layerJSON))
	}))

	fc, err := c.Layer(context.Background(), LayerQuery{SpeciesID: 105793, Type: "distribution", Year: 2017, Month: 3})
	require.NoError(t, err)

	s := Summarize(fc)
	assert.Equal(t, 2, s.Features)
	assert.True(t, s.HasLevel)
	assert.Equal(t, 7.5, s.MaxLevel)
	assert.Equal(t, []string{"FACT", "TQCS", "BLKTP"}, s.Projects)
	require.True(t, s.HasBound)
	assert.Equal(t, -81.0, s.Bound.Min.Lon())
	assert.Equal(t, 32.0, s.Bound.Max.Lat())
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(geojson.NewFeatureCollection())
	assert.False(t, s.HasLevel)
	assert.Zero(t, s.MaxLevel)
	assert.Empty(t, s.Projects)
	assert.False(t, Summarize(nil).HasBound)
}

func TestErrors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/atp/inventory" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		http.NotFound(w, r)
	}))

	_, err := c.Layer(context.Background(), LayerQuery{SpeciesID: 1, Type: "range", Year: 2010})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Inventory(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestSharedRequests(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(layerJSON))
	}))

	q := LayerQuery{SpeciesID: 105793, Type: "distribution", Year: 2017}
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Layer(context.Background(), q)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, hits.Load(), int32(4))
	assert.GreaterOrEqual(t, hits.Load(), int32(1))
}

func TestPhotos(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
		  {"caption": {"rendered": "<p>Bull shark aphiaID: 105793</p>"}, "media_details": {"width": 800, "height": 600,
		   "sizes": {"medium": {"source_url": "https://img/medium.jpg", "width": 300, "height": 225}}}},
		  {"caption": {"rendered": "<p>no id here</p>"}, "media_details": {"width": 1, "height": 1}}
		]`))
	}))

	photos, err := c.Photos(context.Background())
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "https://img/medium.jpg", photos[105793].Sizes["medium"].SourceURL)
}

func TestSharedFetchSurvivesCallerCancel(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.Write([]byte(`{"FACT": {"shortname": "FACT", "citation": "FACT Network"}}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Citations(ctx)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		cites, err := c.Citations(context.Background())
		if err == nil && cites["FACT"].Citation != "FACT Network" {
			err = errors.New("unexpected citations")
		}
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	assert.NoError(t, <-second)
}

func TestInventoryRejectsEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	_, err := c.Inventory(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, inventory.ErrEmpty)
}

func TestLevelRejectsNonFinite(t *testing.T) {
	for _, v := range []any{"Inf", "-Inf", "NaN", "+Inf", math.Inf(1), math.NaN()} {
		_, ok := Level(geojson.Properties{"level": v})
		assert.False(t, ok, "%v", v)
	}
	lvl, ok := Level(geojson.Properties{"level": " 4.5 "})
	assert.True(t, ok)
	assert.Equal(t, 4.5, lvl)

	fc := geojson.NewFeatureCollection()
	for _, v := range []any{"Inf", 2.0} {
		f := geojson.NewFeature(nil)
		f.Properties["level"] = v
		fc.Append(f)
	}
	assert.Equal(t, 2.0, Summarize(fc).MaxLevel)
}
