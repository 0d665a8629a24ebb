package functions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/anneal/internal/optimization"
)

func TestKnownMinima(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"sphere", []float64{0, 0, 0}, 0},
		{"quadratic", []float64{1, 1}, 0},
		{"rosenbrock", []float64{1, 1, 1, 1}, 0},
		{"rastrigin", []float64{0, 0}, 0},
		{"ackley", []float64{0, 0, 0}, 0},
		{"eggholder", []float64{512, 404.2319}, -959.6406627208},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, f.Eval(tt.x), 1e-3)
			assert.InDelta(t, f.Minimum, tt.want, 1e-9)
		})
	}
}

func TestValuesAwayFromMinimum(t *testing.T) {
	assert.Equal(t, 14.0, Sphere([]float64{1, 2, 3}))
	assert.Equal(t, 5.0, ShiftedQuadratic([]float64{0, 3}))
	assert.InDelta(t, 1.0, Rosenbrock([]float64{0, 0}), 1e-12)
	assert.InDelta(t, 1.0, Rastrigin([]float64{1}), 1e-9)
	assert.Greater(t, Ackley([]float64{1, 1}), 3.0)
}

func TestLookup(t *testing.T) {
	f, err := Lookup("  Rastrigin ")
	require.NoError(t, err)
	assert.Equal(t, "rastrigin", f.Name)

	_, err = Lookup("himmelblau")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sphere")
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{"ackley", "eggholder", "quadratic", "rastrigin", "rosenbrock", "sphere"}, names)
}

func TestObjectiveChecksDimension(t *testing.T) {
	f, err := Lookup("eggholder")
	require.NoError(t, err)

	_, err = f.Objective()([]float64{1, 2, 3})
	require.Error(t, err)
	_, ok := optimization.IsOptimizationError(err)
	assert.True(t, ok)

	v, err := f.Objective()([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, Eggholder([]float64{0, 0}), v)

	assert.NoError(t, f.CheckDim(2))
	assert.True(t, errors.Is(f.CheckDim(3), optimization.ErrDimensionMismatch))

	sphere, err := Lookup("sphere")
	require.NoError(t, err)
	assert.NoError(t, sphere.CheckDim(7))
	assert.Error(t, sphere.CheckDim(0))
}
