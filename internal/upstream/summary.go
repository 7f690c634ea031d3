package upstream

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Summary is what the service needs from one layer load.
type Summary struct {
	Features int
	MaxLevel float64
	HasLevel bool
	Projects []string
	Bound    orb.Bound
	HasBound bool
}

// Summarize extracts the maximum "level" and the distinct "project_codes"
// from a feature collection, plus the union of feature bounds.
func Summarize(fc *geojson.FeatureCollection) Summary {
	var s Summary
	if fc == nil {
		return s
	}
	s.Features = len(fc.Features)
	s.MaxLevel = math.Inf(-1)
	seen := map[string]struct{}{}

	for _, f := range fc.Features {
		if lvl, ok := Level(f.Properties); ok && lvl > s.MaxLevel {
			s.MaxLevel = lvl
			s.HasLevel = true
		}
		for _, code := range ProjectCodes(f.Properties) {
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			s.Projects = append(s.Projects, code)
		}
		if f.Geometry != nil {
			b := f.Geometry.Bound()
			if s.HasBound {
				s.Bound = s.Bound.Union(b)
			} else {
				s.Bound, s.HasBound = b, true
			}
		}
	}
	if !s.HasLevel {
		s.MaxLevel = 0
	}
	return s
}

// Level reads the numeric "level" property. Numeric strings are accepted;
// NaN and infinities are not.
func Level(props geojson.Properties) (float64, bool) {
	var f float64
	switch v := props["level"].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ProjectCodes splits the comma separated "project_codes" property,
// trimming whitespace and dropping empties.
func ProjectCodes(props geojson.Properties) []string {
	raw, _ := props["project_codes"].(string)
	if raw == "" {
		return nil
	}
	var codes []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}
