package optimization

import (
	"context"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process
	Optimize(ctx context.Context, config OptimizerConfig) (*OptimizationResult, error)

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetHistory returns the history of evaluations
	GetHistory() []Evaluation

	// Stop gracefully stops the optimization process
	Stop()
}

// OptimizerConfig contains configuration for the optimizer
type OptimizerConfig struct {
	// Objective function to optimize
	Objective ObjectiveFunction

	// Initial guess. When empty, the centre of Bounds is used.
	X0 []float64

	// Bounds for each dimension [min, max]
	Bounds [][2]float64

	// Maximum number of iterations
	MaxIterations int

	// Random seed for reproducibility
	RandomSeed int64

	// Verbose logging
	Verbose bool
}

// ObjectiveFunction defines the function to be optimized
type ObjectiveFunction func([]float64) (float64, error)

// ObjectiveWithArgs is an objective that takes extra positional arguments
// after the point being evaluated.
type ObjectiveWithArgs func(x []float64, args ...interface{}) (float64, error)

// Bind fixes the extra arguments of fn and returns a plain ObjectiveFunction.
func Bind(fn ObjectiveWithArgs, args ...interface{}) ObjectiveFunction {
	if fn == nil {
		return nil
	}
	bound := append([]interface{}(nil), args...)
	return func(x []float64) (float64, error) {
		return fn(x, bound...)
	}
}

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64
	Value      float64
}

// Evaluation represents a single evaluation of the objective function
type Evaluation struct {
	Iteration int
	Solution  *Solution
	Error     error
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution
	History      []Evaluation
	Iterations   int
	Converged    bool
}

// CenterOf returns the midpoint of each bound pair.
func CenterOf(bounds [][2]float64) []float64 {
	x := make([]float64, len(bounds))
	for i, b := range bounds {
		x[i] = b[0] + (b[1]-b[0])/2
	}
	return x
}
