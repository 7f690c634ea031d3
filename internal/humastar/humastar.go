// Package humastar serves Datastar SSE responses from huma operations.
//
// Editor handlers embed [Handler], render fragments with [Handler.Render] or
// [Handler.RenderList] and push them to the page as [Fragment]s:
//
//	return h.Stream(func(sse humastar.SSE) {
//	    sse.Patch(
//	        humastar.Fragment{Selector: "#layer-list", HTML: h.RenderList("layer-card", items, empty)},
//	        humastar.Fragment{Selector: "#legend", HTML: h.Render("legend", legend)},
//	    )
//	}), nil
//
// Request signals arrive through [SignalsInput]; Link headers and actions
// live in links.go and actions.go.
package humastar

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-atp/internal/templates"
)

// Fragment is rendered HTML destined for the children of one page element.
type Fragment struct {
	Selector string
	HTML     string
}

// EmptyState is the data of the "empty-state" fragment.
type EmptyState struct {
	Title   string
	Message string
}

// Handler renders fragments for SSE responses.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream runs fn against the response once huma hands over the writer.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{Body: func(ctx huma.Context) { fn(NewSSE(ctx)) }}
}

// Render executes one named fragment. A failed render yields an HTML
// comment naming the fragment so the rest of the page still patches.
func (h *Handler) Render(tmpl string, data any) string {
	out, err := h.Renderer.Render(tmpl, data)
	if err != nil {
		return fmt.Sprintf("<!-- %s: render failed -->", tmpl)
	}
	return out
}

// RenderList concatenates tmpl over items, or renders empty when there are
// none.
func (h *Handler) RenderList(tmpl string, items []any, empty EmptyState) string {
	if len(items) == 0 {
		return h.Render("empty-state", empty)
	}
	var buf bytes.Buffer
	for _, it := range items {
		buf.WriteString(h.Render(tmpl, it))
	}
	return buf.String()
}

// SSE is a Datastar event stream bound to one request.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE opens the stream on the request behind ctx.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the children of each fragment's target element.
func (s SSE) Patch(frags ...Fragment) {
	for _, f := range frags {
		s.PatchElements(f.HTML,
			datastar.WithSelector(f.Selector),
			datastar.WithModeInner(),
			datastar.WithViewTransitions(),
		)
	}
}

// Error shows msg in the error banner and clears the success banner.
func (s SSE) Error(msg string) {
	s.Signals(map[string]any{"error": msg, "success": ""})
}

// Success shows msg in the success banner and clears the error banner.
func (s SSE) Success(msg string) {
	s.Signals(map[string]any{"success": msg, "error": ""})
}

// Signals merges signals into the page's signal store.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Signals is the flat JSON object Datastar posts with each action.
type Signals map[string]any

// ParseSignals decodes a request body. An empty body yields no signals.
func ParseSignals(body []byte) (Signals, error) {
	signals := Signals{}
	if len(bytes.TrimSpace(body)) == 0 {
		return signals, nil
	}
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

func lookup[T any](s Signals, key string) T {
	v, _ := s[key].(T)
	return v
}

// Has reports whether key was sent, whatever its value.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// String returns key as a string, or "" when absent or not a string.
func (s Signals) String(key string) string { return lookup[string](s, key) }

// Bool returns key as a bool, or false when absent or not a bool.
func (s Signals) Bool(key string) bool { return lookup[bool](s, key) }

// Int returns key truncated to an int, or 0 when absent or not a number.
func (s Signals) Int(key string) int { return int(lookup[float64](s, key)) }

// EmptyInput is the input of operations without parameters.
type EmptyInput struct{}

// SignalsInput receives the raw Datastar signals body.
type SignalsInput struct {
	RawBody []byte
}

// Parse decodes the signals, answering 400 when the body is not JSON.
func (i *SignalsInput) Parse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid signals: " + err.Error())
	}
	return signals, nil
}
