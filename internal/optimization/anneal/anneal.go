// Package anneal implements a derivative-free simulated annealing minimizer
// over an axis-aligned box, with fast, cauchy and boltzmann schedules.
package anneal

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/anneal/internal/optimization"
	"github.com/copyleftdev/anneal/internal/optimization/polish"
)

// Result is the outcome of a run.
type Result struct {
	// XMin is the best point encountered and JMin its objective value.
	XMin []float64
	JMin float64
	// T is the temperature when the run stopped.
	T float64
	// FEval counts objective evaluations, including T0 estimation.
	FEval int
	// Iters counts cooling steps, the initial guess included.
	Iters  int
	Accept int
	// Status is the reported code; Cause is the predicate that stopped the
	// run. They differ only when Status is StatusNotMinimum.
	Status  Status
	Cause   Status
	Success bool
	Message string
	// Polished is set when the local refinement improved XMin.
	Polished bool
	// History holds the best solution after each cooling step when
	// Options.RecordHistory is set.
	History []optimization.Evaluation
}

// state is owned by the cooling loop.
type state struct {
	x, xBest []float64
	j, jBest float64
	T        float64
	k        int
	feval    int
	accept   int
	iters    int
}

type run struct {
	f       optimization.ObjectiveFunction
	opts    Options
	bounds  Bounds
	sched   schedule
	rng     *rand.Rand
	logger  *zap.Logger
	owned   bool
	recent  objectiveRing
	cand    []float64
	history []optimization.Evaluation
}

// Minimize searches for the global minimum of f starting at x0. Setup
// problems are returned before f is called. Reaching a budget or the final
// temperature is a normal outcome reported through Result.Status.
func Minimize(ctx context.Context, f optimization.ObjectiveFunction, x0 []float64, opts Options) (*Result, error) {
	r, err := newRun(f, x0, opts)
	if err != nil {
		return nil, err
	}
	return r.minimize(ctx, x0)
}

func newRun(f optimization.ObjectiveFunction, x0 []float64, opts Options) (*run, error) {
	if f == nil {
		return nil, wrap(optimization.ErrNilObjective, "setup", "objective is nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(x0) == 0 {
		return nil, wrap(optimization.ErrDimensionMismatch, "setup", "x0 is empty")
	}
	bounds, err := NewBounds(len(x0), opts.Lower, opts.Upper)
	if err != nil {
		return nil, err
	}
	if opts.T0 == 0 {
		if i, ok := bounds.finite(); !ok {
			return nil, wrap(optimization.ErrInvalidParameter, "setup",
				"axis %d is unbounded; set T0 explicitly", i)
		}
	}

	logger, owned := opts.Logger, false
	if logger == nil {
		logger = zap.NewNop()
		if opts.Disp {
			if dev, err := zap.NewDevelopment(); err == nil {
				logger, owned = dev, true
			}
		}
	}

	return &run{
		f:      f,
		opts:   opts,
		bounds: bounds,
		rng:    opts.rng(),
		logger: logger.Named("anneal"),
		owned:  owned,
		cand:   make([]float64, len(x0)),
	}, nil
}

func (r *run) minimize(ctx context.Context, x0 []float64) (*Result, error) {
	if r.owned {
		// Sync on a console sink may report EINVAL.
		defer func() { _ = r.logger.Sync() }()
	}

	s := &state{
		x:     append([]float64(nil), x0...),
		xBest: make([]float64, len(x0)),
	}

	T0 := r.opts.T0
	if T0 == 0 {
		var err error
		if T0, err = r.estimateT0(s); err != nil {
			return nil, err
		}
	}

	sched, err := newSchedule(r.opts.Schedule, scheduleParams{
		T0:        T0,
		LearnRate: r.opts.LearnRate,
		Quench:    r.opts.Quench,
		M:         r.opts.M,
		N:         r.opts.N,
	})
	if err != nil {
		return nil, err
	}
	r.sched = sched

	j, err := r.evaluate(s, s.x)
	if err != nil {
		return nil, err
	}
	s.j, s.jBest = j, j
	copy(s.xBest, s.x)
	s.T = T0
	s.iters = 1

	r.logger.Debug("Starting anneal",
		zap.String("schedule", string(r.opts.Schedule)),
		zap.Int("dim", len(x0)),
		zap.Float64("t0", T0),
		zap.Float64("j0", j),
		zap.Int("dwell", r.opts.Dwell),
	)

	var cause Status
	for {
		cancelled, err := r.dwell(ctx, s)
		if err != nil {
			return nil, err
		}

		r.recent.push(s.jBest)
		tNew := r.sched.temperature(s.k)
		s.iters++

		stop := true
		if cancelled || ctx.Err() != nil {
			cause = StatusCancelled
		} else {
			cause, stop = r.check(tNew, s)
		}
		s.T = tNew

		r.record(s)
		if stop {
			break
		}
		s.k++
	}

	res := r.assemble(s, cause)
	if r.opts.Polish && cause != StatusCancelled {
		if err := r.polish(res); err != nil {
			return nil, err
		}
	}
	r.report(res)
	return res, nil
}

// dwell runs the inner loop at the current temperature. It stops early only
// when the evaluation budget is spent or ctx is done.
func (r *run) dwell(ctx context.Context, s *state) (cancelled bool, err error) {
	for i := 0; i < r.opts.Dwell; i++ {
		if ctx.Err() != nil {
			return true, nil
		}
		if r.opts.MaxEval > 0 && s.feval >= r.opts.MaxEval {
			return false, nil
		}

		r.sched.candidate(r.cand, s.x, s.T, r.bounds, r.rng)
		if !r.bounds.Contains(r.cand) {
			continue
		}

		j, err := r.evaluate(s, r.cand)
		if err != nil {
			return false, err
		}
		if !metropolis(s.j, j, s.T, r.opts.Boltzmann, r.opts.LearnRate, r.rng) {
			continue
		}

		s.accept++
		copy(s.x, r.cand)
		s.j = j
		if j < s.jBest {
			copy(s.xBest, s.x)
			s.jBest = j
		}
	}
	return false, nil
}

// check evaluates the termination predicates in priority order.
func (r *run) check(tNew float64, s *state) (Status, bool) {
	switch {
	case tNew < r.opts.Tf:
		return StatusFinalTemperature, true
	case r.opts.MaxEval > 0 && s.feval >= r.opts.MaxEval:
		return StatusMaxEval, true
	case s.iters >= r.opts.MaxIter:
		return StatusMaxIter, true
	case r.opts.MaxAccept > 0 && s.accept >= r.opts.MaxAccept:
		return StatusMaxAccept, true
	// Without dwell no candidate is ever proposed, so an unchanged best
	// value says nothing about convergence.
	case r.opts.Dwell > 0 && r.recent.stagnant(r.opts.Feps):
		return StatusCooled, true
	}
	return 0, false
}

func (r *run) evaluate(s *state, x []float64) (float64, error) {
	v, err := r.f(x)
	s.feval++
	if err != nil {
		return 0, wrap(err, "evaluate", "objective failed at %v", x)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, wrap(optimization.ErrNonFiniteObjective, "evaluate", "f(%v) = %v", x, v)
	}
	return v, nil
}

// estimateT0 samples the box uniformly and returns 1.2 times the spread of
// the observed values. The sample count is trimmed so that, with the initial
// evaluation, at most MaxEval+1 evaluations are spent.
func (r *run) estimateT0(s *state) (float64, error) {
	n := r.opts.NInit
	if r.opts.MaxEval > 0 && n > r.opts.MaxEval-1 {
		n = max(r.opts.MaxEval-1, 1)
	}

	u := distuv.Uniform{Min: 0, Max: 1, Src: r.rng}
	values := make([]float64, n)
	for i := range values {
		for d := range r.cand {
			r.cand[d] = r.bounds.Lower[d] + u.Rand()*r.bounds.Width(d)
		}
		v, err := r.evaluate(s, r.cand)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	fmin, fmax := floats.Min(values), floats.Max(values)

	T0 := 1.2 * (fmax - fmin)
	if !(T0 > 0) || math.IsInf(T0, 0) {
		T0 = 1.0
	}
	r.logger.Debug("Estimated initial temperature",
		zap.Int("samples", n),
		zap.Float64("fmin", fmin),
		zap.Float64("fmax", fmax),
		zap.Float64("t0", T0),
	)
	return T0, nil
}

// record reports one finished cooling step.
func (r *run) record(s *state) {
	r.logger.Debug("Cooling step",
		zap.Int("k", s.k),
		zap.Float64("t", s.T),
		zap.Float64("j_current", s.j),
		zap.Float64("j_best", s.jBest),
		zap.Int("feval", s.feval),
		zap.Int("accept", s.accept),
	)

	if r.opts.RecordHistory {
		r.history = append(r.history, optimization.Evaluation{
			Iteration: s.k,
			Solution: &optimization.Solution{
				Parameters: append([]float64(nil), s.xBest...),
				Value:      s.jBest,
			},
		})
	}

	if r.opts.Hook != nil {
		r.opts.Hook(Progress{
			K:        s.k,
			T:        s.T,
			JCurrent: s.j,
			JBest:    s.jBest,
			XBest:    s.xBest,
			FEval:    s.feval,
			Accept:   s.accept,
			Iters:    s.iters,
		})
	}
}

// assemble packages the final state. When a cooling or budget predicate
// stopped the run while the current point is worse than the best one, the
// status becomes StatusNotMinimum and Cause keeps the real predicate.
func (r *run) assemble(s *state, cause Status) *Result {
	status := cause
	message := cause.Message()
	if cause <= StatusMaxAccept && s.j > s.jBest {
		status = StatusNotMinimum
		message = fmt.Sprintf("%s (stopped by: %s)", StatusNotMinimum.Message(), cause.Message())
	}

	return &Result{
		XMin:    append([]float64(nil), s.xBest...),
		JMin:    s.jBest,
		T:       s.T,
		FEval:   s.feval,
		Iters:   s.iters,
		Accept:  s.accept,
		Status:  status,
		Cause:   cause,
		Success: status.Success(),
		Message: message,
		History: r.history,
	}
}

// polish refines res.XMin with a bounded local search. The evaluations it
// spends count toward FEval and MaxEval.
func (r *run) polish(res *Result) error {
	settings := polish.DefaultSettings()
	if r.opts.MaxEval > 0 {
		left := r.opts.MaxEval - res.FEval
		if left <= 0 {
			return nil
		}
		settings.MaxEvaluations = left
	}

	out, err := polish.Refine(r.f, res.XMin, res.JMin, r.bounds.Lower, r.bounds.Upper, settings)
	if err != nil {
		return wrap(err, "polish", "local refinement failed")
	}
	res.FEval += out.FEval
	if out.Refined {
		r.logger.Debug("Polished minimum",
			zap.Float64("j_before", res.JMin),
			zap.Float64("j_after", out.F),
			zap.Int("feval", out.FEval),
		)
		res.XMin, res.JMin, res.Polished = out.X, out.F, true
	}
	return nil
}

// report logs the outcome when Disp is set. Caps and the not-minimum
// override are logged at Warn.
func (r *run) report(res *Result) {
	if !r.opts.Disp {
		return
	}
	fields := []zap.Field{
		zap.Int("status", int(res.Status)),
		zap.String("cause", res.Cause.String()),
		zap.Float64("j_min", res.JMin),
		zap.Float64s("x_min", res.XMin),
		zap.Float64("t", res.T),
		zap.Int("feval", res.FEval),
		zap.Int("iters", res.Iters),
		zap.Int("accept", res.Accept),
	}
	if res.Status == StatusNotMinimum || res.Cause.isCap() {
		r.logger.Warn(res.Message, fields...)
	} else {
		r.logger.Info(res.Message, fields...)
	}
}
