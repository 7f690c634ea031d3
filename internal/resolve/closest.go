// Package resolve reconciles requested layer selections against the data
// inventory, snapping years and months to the closest available values.
package resolve

import "slices"

// Number is any value that can be snapped by numeric distance.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Closest returns the element of avail nearest to want by absolute
// distance. Ties go to the smaller value. ok is false when avail is empty.
func Closest[T Number](avail []T, want T) (best T, ok bool) {
	var bestDist T
	for _, v := range avail {
		d := v - want
		if d < 0 {
			d = -d
		}
		if !ok || d < bestDist || (d == bestDist && v < best) {
			best, bestDist, ok = v, d, true
		}
	}
	return best, ok
}

// step moves from cur to the neighbouring element of sorted in direction
// dir. It returns cur unchanged when cur is absent or at the edge.
func step[T comparable](sorted []T, cur T, dir int) (T, bool) {
	i := slices.Index(sorted, cur)
	if i < 0 {
		return cur, false
	}
	j := i + dir
	if dir == 0 || j < 0 || j >= len(sorted) {
		return cur, false
	}
	return sorted[j], true
}
