// Package polish refines an annealing result with a local derivative-free
// search.
package polish

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/anneal/internal/optimization"
)

// Settings controls the local search.
type Settings struct {
	// MaxEvaluations caps objective calls. Zero means 200·dim.
	MaxEvaluations int
	// SimplexSize is the edge of the initial simplex as a fraction of the
	// smallest box width.
	SimplexSize float64
	// Tolerance stops the search when the best value changes by less than
	// this over Iterations steps.
	Tolerance  float64
	Iterations int
}

// DefaultSettings mirrors the local search used after global optimization.
func DefaultSettings() Settings {
	return Settings{
		SimplexSize: 0.05,
		Tolerance:   1e-8,
		Iterations:  50,
	}
}

// Result of Refine.
type Result struct {
	X []float64
	F float64
	// FEval counts objective calls made by the local search.
	FEval int
	// Refined is false when the local search did not beat the start point.
	// X and F then equal the inputs.
	Refined bool
}

// Refine runs Nelder-Mead from x0, whose value is f0, inside the box
// [lower, upper]. Points outside the box and failed evaluations are treated as
// +Inf so the simplex is pushed back inside.
func Refine(f optimization.ObjectiveFunction, x0 []float64, f0 float64, lower, upper []float64, s Settings) (*Result, error) {
	if f == nil {
		return nil, optimization.WrapError(optimization.ErrNilObjective, "polish needs an objective").
			WithComponent("polish")
	}
	if len(lower) != len(x0) || len(upper) != len(x0) {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"bounds have %d/%d entries for %d dimensions", len(lower), len(upper), len(x0)).
			WithComponent("polish")
	}

	res := &Result{
		X: append([]float64(nil), x0...),
		F: f0,
	}

	evals := 0
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			for i := range x {
				if !(x[i] >= lower[i] && x[i] <= upper[i]) {
					return math.Inf(1)
				}
			}
			evals++
			v, err := f(x)
			if err != nil || math.IsNaN(v) {
				return math.Inf(1)
			}
			return v
		},
	}

	maxEval := s.MaxEvaluations
	if maxEval <= 0 {
		maxEval = 200 * len(x0)
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEval,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.Tolerance,
			Relative:   s.Tolerance,
			Iterations: s.Iterations,
		},
	}

	widths := make([]float64, len(x0))
	floats.SubTo(widths, upper, lower)
	size := s.SimplexSize * floats.Min(widths)
	if !(size > 0) || math.IsInf(size, 0) {
		// Unbounded box.
		size = s.SimplexSize
	}
	method := &optimize.NelderMead{
		Reflection:  1.0,
		Expansion:   2.0,
		Contraction: 0.5,
		Shrink:      0.5,
		SimplexSize: size,
	}

	out, err := optimize.Minimize(problem, x0, settings, method)
	res.FEval = evals
	if err != nil && out == nil {
		return res, nil
	}
	if out != nil && out.F < f0 {
		res.X = append(res.X[:0], out.X...)
		res.F = out.F
		res.Refined = true
	}
	return res, nil
}
