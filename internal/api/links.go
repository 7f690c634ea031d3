package api

// Links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var Links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/stack>; rel="stack"`,
		`</api/v1/inventory>; rel="inventory"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/stack>; rel="stack"`,
	},
	"/api/v1/inventory": {
		`</api/v1/stack>; rel="stack"`,
	},
	"/api/v1/inventory/{species}/availability": {
		`</api/v1/inventory>; rel="collection"`,
		`</api/v1/stack>; rel="stack"`,
	},
	"/api/v1/stack": {
		`</api/v1/legend>; rel="legend"`,
		`</api/v1/inventory>; rel="inventory"`,
		`</api/v1/settings>; rel="settings"`,
	},
	"/api/v1/stack/layers/{index}": {
		`</api/v1/stack>; rel="collection"`,
	},
	"/api/v1/stack/layers/{index}/move": {
		`</api/v1/stack>; rel="collection"`,
	},
	"/api/v1/legend": {
		`</api/v1/stack>; rel="stack"`,
		`</api/v1/citations>; rel="citations"`,
	},
	"/api/v1/click": {
		`</api/v1/citations>; rel="citations"`,
	},
	"/api/v1/photos/{species}": {
		`</api/v1/photos>; rel="collection"`,
	},
	"/api/v1/settings": {
		`</api/v1/stack>; rel="stack"`,
	},
}
