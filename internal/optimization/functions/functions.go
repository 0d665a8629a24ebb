// Package functions provides standard test objectives for global minimizers.
package functions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	gfn "gonum.org/v1/gonum/optimize/functions"

	"github.com/copyleftdev/anneal/internal/optimization"
)

// Function is a named objective with its recommended search box.
type Function struct {
	Name        string
	Description string
	// Dim is the required dimension, or 0 when any dimension works.
	Dim int
	// Lower and Upper apply to every axis.
	Lower float64
	Upper float64
	// Minimum is the known global minimum value.
	Minimum float64
	Eval    func(x []float64) float64
}

// Objective returns f as an optimization.ObjectiveFunction that rejects
// points of the wrong dimension.
func (f Function) Objective() optimization.ObjectiveFunction {
	return func(x []float64) (float64, error) {
		if f.Dim > 0 && len(x) != f.Dim {
			return 0, optimization.NewErrorf("%s needs %d dimensions, got %d", f.Name, f.Dim, len(x)).
				WithComponent("functions").
				WithOperation("evaluate")
		}
		return f.Eval(x), nil
	}
}

// CheckDim reports whether f can be evaluated in d dimensions.
func (f Function) CheckDim(d int) error {
	if d <= 0 || (f.Dim > 0 && d != f.Dim) {
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"%s cannot be evaluated in %d dimensions", f.Name, d)
	}
	return nil
}

var registry = map[string]Function{
	"sphere": {
		Name:        "sphere",
		Description: "sum of squares",
		Lower:       -5.12,
		Upper:       5.12,
		Eval:        Sphere,
	},
	"quadratic": {
		Name:        "quadratic",
		Description: "shifted convex quadratic with minimum at (1, ..., 1)",
		Lower:       -10,
		Upper:       10,
		Eval:        ShiftedQuadratic,
	},
	"rosenbrock": {
		Name:        "rosenbrock",
		Description: "extended Rosenbrock valley",
		Lower:       -5,
		Upper:       10,
		Eval:        Rosenbrock,
	},
	"rastrigin": {
		Name:        "rastrigin",
		Description: "highly multimodal cosine landscape",
		Lower:       -5.12,
		Upper:       5.12,
		Eval:        Rastrigin,
	},
	"ackley": {
		Name:        "ackley",
		Description: "nearly flat outer region with a deep central hole",
		Lower:       -32.768,
		Upper:       32.768,
		Eval:        Ackley,
	},
	"eggholder": {
		Name:        "eggholder",
		Description: "two-dimensional function with many deep local minima",
		Dim:         2,
		Lower:       -512,
		Upper:       512,
		Minimum:     -959.6406627208,
		Eval:        Eggholder,
	},
}

// Lookup returns the function registered under name.
func Lookup(name string) (Function, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Function{}, fmt.Errorf("unknown objective %q, want one of %s", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names returns the registered names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sphere computes sum(x_i^2).
func Sphere(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// ShiftedQuadratic computes sum((x_i - 1)^2).
func ShiftedQuadratic(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += (v - 1) * (v - 1)
	}
	return sum
}

// Rosenbrock is the extended Rosenbrock function. One-dimensional input is
// treated as (x, 1).
func Rosenbrock(x []float64) float64 {
	if len(x) == 1 {
		x = []float64{x[0], 1}
	}
	return gfn.ExtendedRosenbrock{}.Func(x)
}

// Rastrigin computes 10·n + sum(x_i^2 - 10·cos(2πx_i)).
func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Ackley computes the Ackley function with a=20, b=0.2, c=2π.
func Ackley(x []float64) float64 {
	n := float64(len(x))
	var sumSq, sumCos float64
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E
}

// Eggholder is defined on two dimensions.
func Eggholder(x []float64) float64 {
	a, b := x[0], x[1]
	return -(b+47)*math.Sin(math.Sqrt(math.Abs(a/2+b+47))) -
		a*math.Sin(math.Sqrt(math.Abs(a-(b+47))))
}
