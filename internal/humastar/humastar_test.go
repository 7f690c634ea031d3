package humastar

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-atp/internal/templates"
)

func TestActionDef(t *testing.T) {
	del := ActionDef{Rel: "delete", Pattern: "/api/v1/stack/layers/%d", Method: "DELETE", Title: "Delete layer %d"}
	a := del.For(2)
	assert.Equal(t, `</api/v1/stack/layers/2>; rel="delete"; method="DELETE"; title="Delete layer 2"`, a.LinkHeader())

	add := ActionDef{Rel: "add", Pattern: "/api/v1/stack/layers", Method: "POST", Title: "Add layer"}
	assert.Equal(t, "Add layer", add.For().Title)
}

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"index": 2, "random": true, "name": "x"}`))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Int("index"))
	assert.True(t, s.Bool("random"))
	assert.Equal(t, "x", s.String("name"))
	assert.False(t, s.Has("missing"))

	s, err = ParseSignals(nil)
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = ParseSignals([]byte("{"))
	assert.Error(t, err)
}

func TestActionDefStaticPattern(t *testing.T) {
	sel := ActionDef{Rel: "select", Pattern: "/api/v1/stack/active", Method: "PUT", Title: "Select layer %d"}
	a := sel.For(1)
	assert.Equal(t, "/api/v1/stack/active", a.Href)
	assert.Equal(t, "Select layer 1", a.Title)
}

func TestRenderList(t *testing.T) {
	r, err := templates.NewFS(fstest.MapFS{
		"item.html":        {Data: []byte(`{{define "item"}}<li>{{.}}</li>{{end}}`)},
		"empty-state.html": {Data: []byte(`{{define "empty-state"}}<p>{{.Title}}: {{.Message}}</p>{{end}}`)},
	})
	require.NoError(t, err)
	h := Handler{Renderer: r}

	assert.Equal(t, "<li>a</li><li>b</li>", h.RenderList("item", []any{"a", "b"}, EmptyState{}))
	assert.Equal(t, "<p>None: add one</p>", h.RenderList("item", nil, EmptyState{Title: "None", Message: "add one"}))
	assert.Equal(t, "<!-- missing: render failed -->", h.Render("missing", nil))
}

func TestSignalAccessorsIgnoreWrongTypes(t *testing.T) {
	s, err := ParseSignals([]byte(`{"index": "2", "random": "yes", "name": 3, "opacity": 70.9}`))
	require.NoError(t, err)
	assert.Zero(t, s.Int("index"))
	assert.False(t, s.Bool("random"))
	assert.Empty(t, s.String("name"))
	assert.Equal(t, 70, s.Int("opacity"))
	assert.True(t, s.Has("name"))

	_, err = (&SignalsInput{RawBody: []byte("not json")}).Parse()
	assert.Error(t, err)
}
