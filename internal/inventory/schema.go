package inventory

import "github.com/danielgtaylor/huma/v2"

// Schema documents Period in the OpenAPI spec as a positive integer or the
// string "all".
func (Period) Schema(r huma.Registry) *huma.Schema {
	minimum := 1.0
	return &huma.Schema{
		Description: `A year or month, or "all" to aggregate across it.`,
		OneOf: []*huma.Schema{
			{Type: huma.TypeInteger, Minimum: &minimum},
			{Type: huma.TypeString, Enum: []any{"all"}},
		},
	}
}
