package anneal

import (
	"context"
	"sync"

	"github.com/copyleftdev/anneal/internal/optimization"
)

// Optimizer adapts Minimize to the optimization.Optimizer interface. The best
// solution is published after every cooling step so it can be polled while a
// run is in progress.
type Optimizer struct {
	opts Options

	mu      sync.RWMutex
	best    *optimization.Solution
	history []optimization.Evaluation
	result  *Result
	cancel  context.CancelFunc
}

// NewOptimizer validates opts and returns an Optimizer.
func NewOptimizer(opts Options) (*Optimizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{opts: opts}, nil
}

// Optimize runs one annealing job. Bounds, MaxIterations, RandomSeed and
// Verbose from config override the options given to NewOptimizer when set.
func (o *Optimizer) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	opts := o.opts
	if len(config.Bounds) > 0 {
		opts.Lower = make([]float64, len(config.Bounds))
		opts.Upper = make([]float64, len(config.Bounds))
		for i, b := range config.Bounds {
			opts.Lower[i], opts.Upper[i] = b[0], b[1]
		}
	}
	if config.MaxIterations > 0 {
		opts.MaxIter = config.MaxIterations
	}
	if config.RandomSeed != 0 {
		opts.Seed = uint64(config.RandomSeed)
	}
	if config.Verbose {
		opts.Disp = true
	}
	opts.RecordHistory = true

	userHook := opts.Hook
	opts.Hook = func(p Progress) {
		o.publish(p)
		if userHook != nil {
			userHook(p)
		}
	}

	x0 := config.X0
	if len(x0) == 0 {
		x0 = optimization.CenterOf(config.Bounds)
	}

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.best, o.history, o.result = nil, nil, nil
	o.mu.Unlock()
	defer cancel()

	res, err := Minimize(ctx, config.Objective, x0, opts)
	if err != nil {
		return nil, err
	}

	best := &optimization.Solution{
		Parameters: append([]float64(nil), res.XMin...),
		Value:      res.JMin,
	}

	o.mu.Lock()
	o.best = best
	o.history = res.History
	o.result = res
	o.mu.Unlock()

	return &optimization.OptimizationResult{
		BestSolution: best,
		History:      res.History,
		Iterations:   res.Iters,
		Converged:    res.Success,
	}, nil
}

func (o *Optimizer) publish(p Progress) {
	sol := &optimization.Solution{
		Parameters: append([]float64(nil), p.XBest...),
		Value:      p.JBest,
	}
	o.mu.Lock()
	o.best = sol
	o.history = append(o.history, optimization.Evaluation{Iteration: p.K, Solution: sol})
	o.mu.Unlock()
}

// GetBestSolution returns the best solution found so far
func (o *Optimizer) GetBestSolution() *optimization.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.best
}

// GetHistory returns the best solution after each cooling step
func (o *Optimizer) GetHistory() []optimization.Evaluation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]optimization.Evaluation(nil), o.history...)
}

// Result returns the full diagnostics of the last finished run, or nil.
func (o *Optimizer) Result() *Result {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.result
}

// Stop cancels a run in progress. The run finishes with StatusCancelled.
func (o *Optimizer) Stop() {
	o.mu.RLock()
	cancel := o.cancel
	o.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}
