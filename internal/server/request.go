package server

import (
	"fmt"

	"github.com/copyleftdev/anneal/internal/optimization"
	"github.com/copyleftdev/anneal/internal/optimization/anneal"
	"github.com/copyleftdev/anneal/internal/optimization/functions"
)

// JobRequest is the body of POST /api/v1/anneal and the params of
// anneal.start. Zero-valued tuning fields take the server defaults.
type JobRequest struct {
	// Objective names a registered function, see functions.Names.
	Objective string `json:"objective"`
	// Dim is required unless X0 or per-axis bounds fix the dimension.
	Dim int       `json:"dim,omitempty"`
	X0  []float64 `json:"x0,omitempty"`
	// Lower and Upper are scalars (length 1) or per-axis. When omitted the
	// objective's recommended box is used.
	Lower []float64 `json:"lower,omitempty"`
	Upper []float64 `json:"upper,omitempty"`

	Schedule  string  `json:"schedule,omitempty"`
	T0        float64 `json:"t0,omitempty"`
	Tf        float64 `json:"tf,omitempty"`
	MaxEval   int     `json:"maxeval,omitempty"`
	MaxAccept int     `json:"maxaccept,omitempty"`
	MaxIter   int     `json:"maxiter,omitempty"`
	Boltzmann float64 `json:"boltzmann,omitempty"`
	LearnRate float64 `json:"learn_rate,omitempty"`
	Quench    float64 `json:"quench,omitempty"`
	M         float64 `json:"m,omitempty"`
	N         float64 `json:"n,omitempty"`
	Dwell     *int    `json:"dwell,omitempty"`
	Feps      float64 `json:"feps,omitempty"`
	Seed      uint64  `json:"seed,omitempty"`
	Polish    *bool   `json:"polish,omitempty"`
}

// job is a validated request ready to run.
type job struct {
	fn   functions.Function
	x0   []float64
	opts anneal.Options
}

// build validates r against defaults. Errors wrap the optimization sentinels
// or describe the offending field.
func (r *JobRequest) build(defaults anneal.Options) (*job, error) {
	fn, err := functions.Lookup(r.Objective)
	if err != nil {
		return nil, err
	}

	opts := defaults
	if r.Schedule != "" {
		if opts.Schedule, err = anneal.ParseSchedule(r.Schedule); err != nil {
			return nil, err
		}
	}
	setFloat(&opts.T0, r.T0)
	setFloat(&opts.Tf, r.Tf)
	setInt(&opts.MaxEval, r.MaxEval)
	setInt(&opts.MaxAccept, r.MaxAccept)
	setInt(&opts.MaxIter, r.MaxIter)
	setFloat(&opts.Boltzmann, r.Boltzmann)
	setFloat(&opts.LearnRate, r.LearnRate)
	setFloat(&opts.Quench, r.Quench)
	setFloat(&opts.M, r.M)
	setFloat(&opts.N, r.N)
	setFloat(&opts.Feps, r.Feps)
	if r.Dwell != nil {
		opts.Dwell = *r.Dwell
	}
	if r.Polish != nil {
		opts.Polish = *r.Polish
	}
	opts.Seed = r.Seed

	opts.Lower, opts.Upper = r.Lower, r.Upper
	if len(opts.Lower) == 0 {
		opts.Lower = []float64{fn.Lower}
	}
	if len(opts.Upper) == 0 {
		opts.Upper = []float64{fn.Upper}
	}

	dim := r.dimension(fn)
	if dim == 0 {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"cannot infer the dimension of %s; set dim or x0", fn.Name)
	}
	if err := fn.CheckDim(dim); err != nil {
		return nil, err
	}

	bounds, err := anneal.NewBounds(dim, opts.Lower, opts.Upper)
	if err != nil {
		return nil, err
	}

	x0 := r.X0
	if len(x0) == 0 {
		x0 = make([]float64, dim)
		for i := range x0 {
			x0[i] = bounds.Lower[i] + bounds.Width(i)/2
		}
	} else if len(x0) != dim {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"x0 has %d entries, dim is %d", len(x0), dim)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &job{fn: fn, x0: append([]float64(nil), x0...), opts: opts}, nil
}

func (r *JobRequest) dimension(fn functions.Function) int {
	switch {
	case r.Dim > 0:
		return r.Dim
	case len(r.X0) > 0:
		return len(r.X0)
	case len(r.Lower) > 1:
		return len(r.Lower)
	case len(r.Upper) > 1:
		return len(r.Upper)
	default:
		return fn.Dim
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// idParams is the params object of anneal.status and anneal.cancel.
type idParams struct {
	ID string `json:"id"`
}

func (p idParams) validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}
