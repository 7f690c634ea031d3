package humastar

import (
	"fmt"
	"strings"
)

// Action is a state-dependent hypermedia action link. Only actions that are
// currently allowed are emitted, so a client can tell a full stack from one
// that accepts another layer without knowing the rules.
//
// Example Link header output:
//
//	</api/v1/stack/layers/2>; rel="delete"; method="DELETE"; title="Delete layer 2"
type Action struct {
	Rel    string // IANA rel or custom (e.g., "add", "move-up")
	Href   string // target URL
	Method string // HTTP method: POST, PUT, DELETE, etc.
	Title  string // optional human-readable label
}

// Actor is implemented by response bodies that provide state-dependent actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value
// with method and title extension parameters.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	return h
}

// ActionDef is a reusable action template. Pattern and Title are formatted
// with the arguments to For when they contain a verb.
type ActionDef struct {
	Rel     string
	Pattern string // e.g. "/api/v1/stack/layers/%d"
	Method  string
	Title   string
}

// For fills the template with args.
func (d ActionDef) For(args ...any) Action {
	return Action{Rel: d.Rel, Href: format(d.Pattern, args), Method: d.Method, Title: format(d.Title, args)}
}

func format(s string, args []any) string {
	if !strings.Contains(s, "%") {
		return s
	}
	return fmt.Sprintf(s, args...)
}
