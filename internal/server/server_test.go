package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-atp/internal/logging"
	"github.com/joeblew999/plat-atp/internal/service"
	"github.com/joeblew999/plat-atp/internal/store"
)

const inventoryJSON = `[
  {"aphiaId": 105793, "speciesCommonName": "bull shark", "speciesScientificName": "Carcharhinus leucas",
   "byProject": {
     "_ALL": {"years": [{"year": "all", "months": []}, {"year": 2017, "months": [3, 4]}]},
     "FACT": {"years": [{"year": 2017, "months": [3, 4]}]}
   }}
]`

const layerJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-81, 30]},
     "properties": {"level": 3, "project_codes": "FACT"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-79, 31]},
     "properties": {"level": 7.5, "project_codes": "FACT, TQCS"}}
  ]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, func() string { return inventoryJSON })
}

// newTestServerWith serves the inventory document returned by inventory at
// request time.
func newTestServerWith(t *testing.T, inventory func() string) *Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/atp/inventory", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(inventory()))
	})
	mux.HandleFunc("/atp/105793/distribution/2017", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(layerJSON))
	})
	upstreamSrv := httptest.NewServer(mux)
	t.Cleanup(upstreamSrv.Close)

	srv, err := New(Config{
		Host:    "localhost",
		Port:    "8086",
		DataDir: t.TempDir(),
		DataURL: upstreamSrv.URL,
		Store:   store.Config{Kind: "memory"},
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestInventoryLoadFeedsLegend(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/api/v1/inventory").Code)

	require.NoError(t, srv.RefreshInventory(t.Context()))
	srv.loader.Wait()

	assert.Equal(t, http.StatusOK, get(t, srv, "/api/v1/inventory").Code)

	rec := get(t, srv, "/api/v1/legend")
	require.Equal(t, http.StatusOK, rec.Code)
	var lg service.Legend
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lg))
	assert.True(t, lg.HasLevel)
	assert.Equal(t, 7.5, lg.MaxLevel)
	assert.Equal(t, []string{"FACT", "TQCS"}, lg.Projects)
	assert.Empty(t, lg.Loading)
	assert.Equal(t, []float64{-81, 30, -79, 31}, lg.Extent)
}

func TestPagesAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plat-atp")

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/nope").Code)

	rec = get(t, srv, "/editor")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="layer-list"`)

	rec = get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "atp_"), "service metrics are exported")
}

func TestOpenAPI(t *testing.T) {
	srv := newTestServer(t)
	paths := srv.OpenAPI().Paths
	for _, p := range []string{"/api/v1/stack", "/api/v1/legend", "/api/v1/editor/events", "/api/v1/info"} {
		assert.Contains(t, paths, p)
	}
}

func TestRefreshKeepsInventoryOnInvalidResponse(t *testing.T) {
	var body atomic.Value
	body.Store(inventoryJSON)
	srv := newTestServerWith(t, func() string { return body.Load().(string) })

	require.NoError(t, srv.RefreshInventory(t.Context()))
	srv.loader.Wait()
	before := srv.Stack().Inventory()
	require.Equal(t, 1, before.Len())

	for _, doc := range []string{
		`[]`,
		`[{"aphiaId": 1, "speciesCommonName": "x", "byProject": {"FACT": {"years": [{"year": 2017, "months": [3]}]}}}]`,
	} {
		body.Store(doc)
		err := srv.RefreshInventory(t.Context())
		require.Error(t, err, doc)
		assert.Same(t, before, srv.Stack().Inventory(), doc)
	}
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/v1/inventory").Code)
}
