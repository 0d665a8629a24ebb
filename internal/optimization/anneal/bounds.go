package anneal

import (
	"math"

	"github.com/copyleftdev/anneal/internal/optimization"
)

// Bounds is the axis-aligned search box.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// NewBounds broadcasts lower and upper to dimension d. A slice of length one
// is treated as a scalar. Infinite limits are replaced by ±math.MaxFloat64 so
// that widths stay finite.
func NewBounds(d int, lower, upper []float64) (Bounds, error) {
	const op = "bounds"

	if d <= 0 {
		return Bounds{}, wrap(optimization.ErrDimensionMismatch, op, "dimension must be positive, got %d", d)
	}

	lo, err := broadcast(d, lower)
	if err != nil {
		return Bounds{}, wrap(err, op, "lower has length %d, want 1 or %d", len(lower), d)
	}
	hi, err := broadcast(d, upper)
	if err != nil {
		return Bounds{}, wrap(err, op, "upper has length %d, want 1 or %d", len(upper), d)
	}

	for i := range lo {
		if math.IsInf(lo[i], -1) {
			lo[i] = -math.MaxFloat64
		}
		if math.IsInf(hi[i], 1) {
			hi[i] = math.MaxFloat64
		}
		if math.IsNaN(lo[i]) || math.IsNaN(hi[i]) || !(lo[i] < hi[i]) {
			return Bounds{}, wrap(optimization.ErrInvalidBounds, op,
				"axis %d: lower %v must be below upper %v", i, lo[i], hi[i])
		}
	}

	return Bounds{Lower: lo, Upper: hi}, nil
}

func broadcast(d int, v []float64) ([]float64, error) {
	out := make([]float64, d)
	switch len(v) {
	case 1:
		for i := range out {
			out[i] = v[0]
		}
	case d:
		copy(out, v)
	default:
		return nil, optimization.ErrDimensionMismatch
	}
	return out, nil
}

// Dim returns the number of axes.
func (b Bounds) Dim() int {
	return len(b.Lower)
}

// Width returns upper[i] - lower[i].
func (b Bounds) Width(i int) float64 {
	return b.Upper[i] - b.Lower[i]
}

// Contains reports whether every component of x lies in [lower, upper].
// NaN components are outside.
func (b Bounds) Contains(x []float64) bool {
	for i, v := range x {
		if !(v >= b.Lower[i] && v <= b.Upper[i]) {
			return false
		}
	}
	return true
}

// finite reports whether every axis has finite limits, and the first axis
// that does not.
func (b Bounds) finite() (int, bool) {
	for i := range b.Lower {
		if b.Lower[i] == -math.MaxFloat64 || b.Upper[i] == math.MaxFloat64 || math.IsInf(b.Width(i), 0) {
			return i, false
		}
	}
	return 0, true
}
