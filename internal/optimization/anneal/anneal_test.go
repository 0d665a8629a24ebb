package anneal

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/copyleftdev/anneal/internal/optimization"
)

func sphere(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

func constant(x []float64) (float64, error) {
	return 3.0, nil
}

// counting wraps f and counts calls.
func counting(f optimization.ObjectiveFunction) (optimization.ObjectiveFunction, *int) {
	calls := new(int)
	return func(x []float64) (float64, error) {
		*calls++
		return f(x)
	}, calls
}

func testOptions(schedule ScheduleKind, seed uint64) Options {
	opts := DefaultOptions()
	opts.Schedule = schedule
	opts.Lower = []float64{-10}
	opts.Upper = []float64{10}
	opts.Seed = seed
	return opts
}

func TestMinimizeSetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		x0     []float64
		mutate func(*Options)
		want   error
	}{
		{
			name:   "lower equals upper",
			x0:     []float64{0, 0},
			mutate: func(o *Options) { o.Lower = []float64{1, -1}; o.Upper = []float64{1, 1} },
			want:   optimization.ErrInvalidBounds,
		},
		{
			name:   "lower above upper",
			x0:     []float64{0},
			mutate: func(o *Options) { o.Lower = []float64{5}; o.Upper = []float64{-5} },
			want:   optimization.ErrInvalidBounds,
		},
		{
			name:   "lower length mismatch",
			x0:     []float64{0, 0},
			mutate: func(o *Options) { o.Lower = []float64{-1, -1, -1} },
			want:   optimization.ErrDimensionMismatch,
		},
		{
			name:   "upper length mismatch",
			x0:     []float64{0, 0, 0},
			mutate: func(o *Options) { o.Upper = []float64{1, 1} },
			want:   optimization.ErrDimensionMismatch,
		},
		{
			name:   "empty x0",
			x0:     nil,
			mutate: func(o *Options) {},
			want:   optimization.ErrDimensionMismatch,
		},
		{
			name:   "unknown schedule",
			x0:     []float64{0},
			mutate: func(o *Options) { o.Schedule = "linear" },
			want:   optimization.ErrInvalidSchedule,
		},
		{
			name:   "negative dwell",
			x0:     []float64{0},
			mutate: func(o *Options) { o.Dwell = -1 },
			want:   optimization.ErrInvalidParameter,
		},
		{
			name:   "zero learn rate",
			x0:     []float64{0},
			mutate: func(o *Options) { o.LearnRate = 0 },
			want:   optimization.ErrInvalidParameter,
		},
		{
			name:   "zero maxiter",
			x0:     []float64{0},
			mutate: func(o *Options) { o.MaxIter = 0 },
			want:   optimization.ErrInvalidParameter,
		},
		{
			name:   "auto T0 with unbounded axis",
			x0:     []float64{0},
			mutate: func(o *Options) { o.Upper = []float64{math.Inf(1)} },
			want:   optimization.ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, calls := counting(sphere)
			opts := testOptions(Fast, 1)
			tt.mutate(&opts)

			res, err := Minimize(context.Background(), f, tt.x0, opts)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, 0, *calls, "setup errors must not evaluate the objective")
		})
	}
}

func TestMinimizeNilObjective(t *testing.T) {
	_, err := Minimize(context.Background(), nil, []float64{0}, testOptions(Fast, 1))
	assert.True(t, errors.Is(err, optimization.ErrNilObjective))
}

func TestMinimizeNonFiniteObjective(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := func(x []float64) (float64, error) {
				if x[0] > 0.5 {
					return tt.value, nil
				}
				return x[0] * x[0], nil
			}
			opts := testOptions(Cauchy, 3)
			opts.T0 = 1

			res, err := Minimize(context.Background(), f, []float64{0}, opts)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, optimization.ErrNonFiniteObjective))
		})
	}
}

func TestMinimizeObjectiveError(t *testing.T) {
	boom := errors.New("simulation crashed")
	f := func(x []float64) (float64, error) {
		return 0, boom
	}
	_, err := Minimize(context.Background(), f, []float64{1}, testOptions(Fast, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	e, ok := optimization.IsOptimizationError(err)
	require.True(t, ok)
	assert.Equal(t, "anneal", e.Component)
	assert.Equal(t, "evaluate", e.Op)
}

func TestMinimizeReproducible(t *testing.T) {
	for _, schedule := range Schedules {
		t.Run(string(schedule), func(t *testing.T) {
			opts := testOptions(schedule, 42)
			opts.MaxIter = 60
			opts.Dwell = 40

			first, err := Minimize(context.Background(), sphere, []float64{2, 2}, opts)
			require.NoError(t, err)
			second, err := Minimize(context.Background(), sphere, []float64{2, 2}, opts)
			require.NoError(t, err)

			assert.Equal(t, first.XMin, second.XMin)
			assert.Equal(t, first.JMin, second.JMin)
			assert.Equal(t, first.Status, second.Status)
			assert.Equal(t, first.FEval, second.FEval)
			assert.Equal(t, first.Accept, second.Accept)
			assert.Equal(t, first.T, second.T)
		})
	}
}

func TestMinimizeScalarBoundsBroadcast(t *testing.T) {
	scalar := testOptions(Cauchy, 9)
	scalar.MaxIter = 50

	vector := scalar
	vector.Lower = []float64{-10, -10}
	vector.Upper = []float64{10, 10}

	a, err := Minimize(context.Background(), sphere, []float64{3, -4}, scalar)
	require.NoError(t, err)
	b, err := Minimize(context.Background(), sphere, []float64{3, -4}, vector)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestMinimizeZeroDwell(t *testing.T) {
	for _, schedule := range Schedules {
		t.Run(string(schedule), func(t *testing.T) {
			f, calls := counting(sphere)
			opts := testOptions(schedule, 5)
			opts.T0 = 10
			opts.Dwell = 0
			opts.MaxIter = 10

			res, err := Minimize(context.Background(), f, []float64{1, 1}, opts)
			require.NoError(t, err)

			assert.Equal(t, 0, res.Accept)
			assert.Equal(t, 1, res.FEval, "only the initial guess is evaluated")
			assert.Equal(t, 1, *calls)
			assert.Equal(t, StatusMaxIter, res.Status, "an idle run must not report convergence")
			assert.Equal(t, StatusMaxIter, res.Cause)
			assert.Equal(t, 10, res.Iters)
			assert.Equal(t, []float64{1, 1}, res.XMin)
		})
	}
}

func TestMinimizeBoltzmannScenario(t *testing.T) {
	f := func(x []float64) (float64, error) {
		a, b := x[0]-1, x[1]+0.5
		return a*a + b*b + 0.3*math.Cos(3*x[0])*math.Cos(3*x[1]), nil
	}
	x0 := []float64{2, 2}
	j0, _ := f(x0)

	opts := testOptions(Boltzmann, 1234)
	opts.MaxIter = 500
	opts.Dwell = 250

	res, err := Minimize(context.Background(), f, x0, opts)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, int(res.Status), 0)
	assert.LessOrEqual(t, int(res.Status), 5)
	assert.LessOrEqual(t, res.Iters, 501)
	assert.LessOrEqual(t, res.JMin, j0)
	for i, v := range res.XMin {
		assert.GreaterOrEqual(t, v, -10.0, "axis %d", i)
		assert.LessOrEqual(t, v, 10.0, "axis %d", i)
	}

	got, _ := f(res.XMin)
	assert.Equal(t, got, res.JMin)
}

func TestMinimizeConvexQuadratic(t *testing.T) {
	opts := testOptions(Fast, 2024)
	opts.Lower = []float64{-1}
	opts.Upper = []float64{1}
	opts.Dwell = 250
	opts.MaxIter = 1000
	opts.Tf = 1e-8

	res, err := Minimize(context.Background(), sphere, []float64{0.8, -0.6}, opts)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, res.XMin[0], 0.1)
	assert.InDelta(t, 0.0, res.XMin[1], 0.1)
	assert.Less(t, res.JMin, 0.01)
	assert.NotEqual(t, StatusCancelled, res.Status)
}

func TestMinimizeStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		want   Status
		check  func(t *testing.T, res *Result)
	}{
		{
			name:   "final temperature",
			mutate: func(o *Options) { o.Tf = 10 },
			want:   StatusFinalTemperature,
			check: func(t *testing.T, res *Result) {
				assert.Equal(t, 2, res.Iters)
				assert.Less(t, res.T, 10.0)
			},
		},
		{
			name:   "max eval",
			mutate: func(o *Options) { o.MaxEval = 20 },
			want:   StatusMaxEval,
			check: func(t *testing.T, res *Result) {
				assert.LessOrEqual(t, res.FEval, 20)
			},
		},
		{
			name:   "max iter",
			mutate: func(o *Options) { o.MaxIter = 3; o.Dwell = 5 },
			want:   StatusMaxIter,
			check: func(t *testing.T, res *Result) {
				assert.Equal(t, 3, res.Iters)
			},
		},
		{
			name:   "max accept",
			mutate: func(o *Options) { o.MaxAccept = 5 },
			want:   StatusMaxAccept,
			check: func(t *testing.T, res *Result) {
				assert.GreaterOrEqual(t, res.Accept, 5)
				assert.Equal(t, 2, res.Iters)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(Cauchy, 77)
			opts.T0 = 1
			tt.mutate(&opts)

			// A flat objective accepts every in-bounds candidate and never
			// leaves the current point worse than the best one.
			res, err := Minimize(context.Background(), constant, []float64{0, 0}, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status, res.Message)
			assert.Equal(t, tt.want, res.Cause)
			tt.check(t, res)

			// On a real objective the stopping predicate is the same; the
			// reported code may be overridden to StatusNotMinimum.
			res, err = Minimize(context.Background(), sphere, []float64{1, 1}, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Cause, res.Message)
			assert.Contains(t, []Status{tt.want, StatusNotMinimum}, res.Status)
		})
	}
}

func TestMinimizeStagnation(t *testing.T) {
	opts := testOptions(Cauchy, 8)
	opts.T0 = 1
	opts.Dwell = 10

	res, err := Minimize(context.Background(), constant, []float64{0}, opts)
	require.NoError(t, err)
	assert.Equal(t, StatusCooled, res.Status)
	assert.Equal(t, 5, res.Iters, "four cooling steps fill the history")
	assert.True(t, res.Success)
	assert.Equal(t, "Points no longer changing", res.Message)
}

func TestMinimizeNotMinimumOverride(t *testing.T) {
	f := func(x []float64) (float64, error) {
		return x[0] * x[0], nil
	}
	// At this temperature nearly every in-bounds move is accepted, so the
	// walk ends away from the minimum at x0.
	opts := testOptions(Fast, 11)
	opts.T0 = 1e6
	opts.MaxIter = 2

	res, err := Minimize(context.Background(), f, []float64{0}, opts)
	require.NoError(t, err)

	assert.Equal(t, StatusNotMinimum, res.Status)
	assert.Equal(t, StatusMaxIter, res.Cause)
	assert.False(t, res.Success)
	assert.Equal(t, []float64{0}, res.XMin)
	assert.Equal(t, 0.0, res.JMin)
	assert.Contains(t, res.Message, "not the minimum")
	assert.Contains(t, res.Message, "Maximum cooling iterations")
}

func TestMinimizeMaxEvalNeverExceeded(t *testing.T) {
	for _, schedule := range Schedules {
		for _, maxeval := range []int{1, 7, 50, 333} {
			f, calls := counting(sphere)
			opts := testOptions(schedule, uint64(maxeval))
			opts.MaxEval = maxeval
			opts.T0 = 5

			res, err := Minimize(context.Background(), f, []float64{1, -1}, opts)
			require.NoError(t, err)
			assert.LessOrEqual(t, res.FEval, maxeval, "%s maxeval=%d", schedule, maxeval)
			assert.Equal(t, *calls, res.FEval)
		}
	}
}

func TestMinimizeMaxEvalWithEstimatedT0(t *testing.T) {
	for _, schedule := range Schedules {
		for _, maxeval := range []int{1, 2, 3, 10} {
			f, calls := counting(sphere)
			opts := testOptions(schedule, uint64(maxeval))
			opts.MaxEval = maxeval
			opts.T0 = 0

			res, err := Minimize(context.Background(), f, []float64{1, 1}, opts)
			require.NoError(t, err)
			assert.LessOrEqual(t, res.FEval, maxeval+1, "%s maxeval=%d", schedule, maxeval)
			assert.Equal(t, *calls, res.FEval)
			assert.Equal(t, StatusMaxEval, res.Cause, "%s maxeval=%d", schedule, maxeval)
		}
	}
}

func TestMinimizeDispWithoutLogger(t *testing.T) {
	opts := testOptions(Fast, 4)
	opts.T0 = 1
	opts.MaxIter = 3
	opts.Disp = true

	res, err := Minimize(context.Background(), sphere, []float64{1}, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iters)
}

func TestMinimizeOutOfBoundsCandidatesAreFree(t *testing.T) {
	f, calls := counting(sphere)
	opts := testOptions(Cauchy, 21)
	opts.Lower = []float64{-1}
	opts.Upper = []float64{1}
	opts.T0 = 1
	opts.LearnRate = 1e6
	opts.Dwell = 20
	opts.MaxIter = 5
	opts.Feps = 0

	res, err := Minimize(context.Background(), f, []float64{0}, opts)
	require.NoError(t, err)

	candidates := opts.Dwell * (res.Iters - 1)
	assert.Equal(t, *calls, res.FEval)
	assert.Less(t, res.FEval, 1+candidates)
}

func TestMinimizeEstimatesT0(t *testing.T) {
	f, calls := counting(sphere)
	opts := testOptions(Fast, 3)
	opts.NInit = 25
	opts.MaxIter = 1
	opts.Dwell = 0

	res, err := Minimize(context.Background(), f, []float64{0.5}, opts)
	require.NoError(t, err)

	assert.Equal(t, 26, res.FEval, "samples plus the initial guess")
	assert.Equal(t, 26, *calls)
	// The fast schedule keeps T0 on its first cooling step.
	assert.Greater(t, res.T, 0.0)
	assert.LessOrEqual(t, res.T, 1.2*200)
}

func TestMinimizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := testOptions(Fast, 1)
	opts.T0 = 1

	res, err := Minimize(ctx, sphere, []float64{1}, opts)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
	assert.Equal(t, 1, res.FEval)
	assert.Equal(t, []float64{1}, res.XMin)
}

func TestMinimizeHookAndHistory(t *testing.T) {
	var steps []Progress
	opts := testOptions(Boltzmann, 6)
	opts.MaxIter = 12
	opts.Dwell = 10
	opts.Feps = 0
	opts.RecordHistory = true
	opts.Hook = func(p Progress) {
		p.XBest = append([]float64(nil), p.XBest...)
		steps = append(steps, p)
	}

	res, err := Minimize(context.Background(), sphere, []float64{4, 4}, opts)
	require.NoError(t, err)

	require.Len(t, steps, res.Iters-1)
	require.Len(t, res.History, res.Iters-1)
	for i := 1; i < len(steps); i++ {
		assert.Equal(t, i, steps[i].K)
		assert.LessOrEqual(t, steps[i].JBest, steps[i-1].JBest, "best never gets worse")
		assert.GreaterOrEqual(t, steps[i].FEval, steps[i-1].FEval)
		assert.Equal(t, steps[i].JBest, res.History[i].Solution.Value)
	}
	last := steps[len(steps)-1]
	assert.Equal(t, res.JMin, last.JBest)
	assert.Equal(t, res.FEval, last.FEval)
	assert.Equal(t, res.T, last.T)
}

func TestMinimizeDispLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	opts := testOptions(Cauchy, 4)
	opts.T0 = 1
	opts.MaxIter = 3
	opts.Disp = true
	opts.Logger = zap.New(core)

	res, err := Minimize(context.Background(), constant, []float64{0}, opts)
	require.NoError(t, err)
	require.Equal(t, StatusMaxIter, res.Status)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "Maximum cooling iterations reached", entries[0].Message)
	assert.Equal(t, "anneal", entries[0].LoggerName)
	assert.Equal(t, int64(3), entries[0].ContextMap()["iters"])
}

func TestMinimizeQuietWithoutDisp(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	opts := testOptions(Cauchy, 4)
	opts.T0 = 1
	opts.MaxIter = 3
	opts.Logger = zap.New(core)

	_, err := Minimize(context.Background(), constant, []float64{0}, opts)
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestMinimizePolish(t *testing.T) {
	opts := testOptions(Boltzmann, 21)
	opts.T0 = 1
	opts.MaxIter = 10
	x0 := []float64{4, -3}

	plain, err := Minimize(context.Background(), sphere, x0, opts)
	require.NoError(t, err)
	assert.False(t, plain.Polished)

	opts.Polish = true
	polished, err := Minimize(context.Background(), sphere, x0, opts)
	require.NoError(t, err)

	assert.LessOrEqual(t, polished.JMin, plain.JMin)
	assert.Greater(t, polished.FEval, plain.FEval)
	assert.Equal(t, plain.Status, polished.Status)
	assert.Equal(t, plain.Iters, polished.Iters)
	if polished.Polished {
		assert.Less(t, polished.JMin, 1e-6)
	}
}

func TestMinimizePolishRespectsMaxEval(t *testing.T) {
	opts := testOptions(Fast, 2)
	opts.T0 = 1
	opts.MaxEval = 120
	opts.Polish = true

	f, calls := counting(sphere)
	res, err := Minimize(context.Background(), f, []float64{2, 2}, opts)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.FEval, 120)
	assert.Equal(t, *calls, res.FEval)
}
