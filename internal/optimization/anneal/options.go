package anneal

import (
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/anneal/internal/optimization"
)

// Progress is reported to Options.Hook after every cooling step.
type Progress struct {
	K        int
	T        float64
	JCurrent float64
	JBest    float64
	XBest    []float64
	FEval    int
	Accept   int
	Iters    int
}

// Hook receives a snapshot after each cooling step. XBest must not be retained
// beyond the call.
type Hook func(Progress)

// Options configures a run. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	// Schedule selects the annealing variant: fast, cauchy or boltzmann.
	Schedule ScheduleKind

	// T0 is the initial temperature. Zero means estimate it from NInit random
	// samples inside the bounds.
	T0 float64
	// Tf stops the run once the temperature falls below it.
	Tf float64

	// MaxEval caps objective evaluations. Zero means no cap.
	MaxEval int
	// MaxAccept caps accepted moves. Zero means no cap.
	MaxAccept int
	// MaxIter caps cooling steps, counting the initial guess as one.
	MaxIter int

	// Boltzmann scales the acceptance probability of worsening moves.
	Boltzmann float64
	// LearnRate scales cauchy and boltzmann steps and the acceptance test.
	LearnRate float64
	// Quench and N set the fast schedule decay c = N·exp(-N·Quench).
	Quench float64
	// M is carried with the schedule parameters; no built-in schedule reads it.
	M float64
	N float64

	// Lower and Upper hold either one value (broadcast) or one per axis.
	Lower []float64
	Upper []float64

	// Dwell is the number of candidates tried per temperature.
	Dwell int
	// Feps is the relative tolerance of the four-step stagnation check.
	Feps float64

	// NInit is the number of samples used to estimate T0.
	NInit int

	// Seed seeds the run's generator. Zero picks a time-based seed.
	Seed uint64
	// Rand overrides Seed when set. It must not be shared with a concurrent run.
	Rand *rand.Rand

	// Disp logs the termination cause at Info/Warn level.
	Disp bool
	// Logger receives run logs. Nil discards them.
	Logger *zap.Logger
	// Hook is called after each cooling step.
	Hook Hook
	// RecordHistory keeps the best solution of every cooling step.
	RecordHistory bool
	// Polish refines the final minimum with a Nelder-Mead search inside the
	// bounds. It is skipped for cancelled runs.
	Polish bool
}

// DefaultOptions returns the classic annealing defaults.
func DefaultOptions() Options {
	return Options{
		Schedule:  Fast,
		Tf:        1e-12,
		MaxIter:   400,
		Boltzmann: 1.0,
		LearnRate: 0.5,
		Quench:    1.0,
		M:         1.0,
		N:         1.0,
		Lower:     []float64{-100},
		Upper:     []float64{100},
		Dwell:     50,
		Feps:      1e-6,
		NInit:     50,
	}
}

// Validate checks the numeric hyperparameters. Bounds and dimensions are
// checked against x0 when the run starts.
func (o *Options) Validate() error {
	const op = "validate"

	if _, err := ParseSchedule(string(o.Schedule)); err != nil {
		return err
	}

	positive := []struct {
		name  string
		value float64
	}{
		{"boltzmann", o.Boltzmann},
		{"learn_rate", o.LearnRate},
		{"quench", o.Quench},
		{"n", o.N},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return wrap(optimization.ErrInvalidParameter, op, "%s must be positive and finite, got %v", p.name, p.value)
		}
	}

	switch {
	case o.T0 < 0 || math.IsNaN(o.T0) || math.IsInf(o.T0, 0):
		return wrap(optimization.ErrInvalidParameter, op, "T0 must be >= 0 and finite, got %v", o.T0)
	case o.Tf < 0 || math.IsNaN(o.Tf):
		return wrap(optimization.ErrInvalidParameter, op, "Tf must be >= 0, got %v", o.Tf)
	case o.MaxEval < 0:
		return wrap(optimization.ErrInvalidParameter, op, "maxeval must be >= 0, got %d", o.MaxEval)
	case o.MaxAccept < 0:
		return wrap(optimization.ErrInvalidParameter, op, "maxaccept must be >= 0, got %d", o.MaxAccept)
	case o.MaxIter < 1:
		return wrap(optimization.ErrInvalidParameter, op, "maxiter must be >= 1, got %d", o.MaxIter)
	case o.Dwell < 0:
		return wrap(optimization.ErrInvalidParameter, op, "dwell must be >= 0, got %d", o.Dwell)
	case o.Feps < 0 || math.IsNaN(o.Feps):
		return wrap(optimization.ErrInvalidParameter, op, "feps must be >= 0, got %v", o.Feps)
	case o.T0 == 0 && o.NInit < 2:
		return wrap(optimization.ErrInvalidParameter, op, "estimating T0 needs at least 2 samples, got %d", o.NInit)
	}
	return nil
}

func (o *Options) rng() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	seed := o.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return NewRand(seed)
}

// NewRand returns the generator used for a seeded run.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}
