package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/anneal/internal/config"
	"github.com/copyleftdev/anneal/internal/logging"
	"github.com/copyleftdev/anneal/internal/optimization/anneal"
	"github.com/copyleftdev/anneal/internal/optimization/functions"
	"github.com/copyleftdev/anneal/internal/store"
)

type runOptions struct {
	root *rootOptions

	configPath string
	objective  string
	dim        int
	x0         []float64
	lower      []float64
	upper      []float64
	schedule   string
	t0         float64
	tf         float64
	maxEval    int
	maxAccept  int
	maxIter    int
	boltzmann  float64
	learnRate  float64
	quench     float64
	m          float64
	n          float64
	dwell      int
	feps       float64
	nInit      int
	seed       uint64
	polish     bool
	disp       bool
	asJSON     bool
	save       string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	ro := &runOptions{root: root}
	d := anneal.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Minimize a built-in objective",
		Long: `Runs one annealing job on a built-in objective and prints the result.
Settings come from the defaults, then --config, then explicit flags.`,
		Example: `  anneal run --objective rosenbrock --dim 2 --schedule cauchy --seed 7
  anneal run --config job.yaml --maxiter 2000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ro.run(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&ro.configPath, "config", "", "YAML run file")
	f.StringVar(&ro.objective, "objective", "", "Objective name (see list-objectives)")
	f.IntVar(&ro.dim, "dim", 0, "Problem dimension")
	f.Float64SliceVar(&ro.x0, "x0", nil, "Initial guess (default: centre of the box)")
	f.Float64SliceVar(&ro.lower, "lower", nil, "Lower bounds, one value or one per axis (default: objective's box)")
	f.Float64SliceVar(&ro.upper, "upper", nil, "Upper bounds, one value or one per axis (default: objective's box)")
	f.StringVar(&ro.schedule, "schedule", string(d.Schedule), "Annealing schedule: fast, cauchy, boltzmann")
	f.Float64Var(&ro.t0, "t0", 0, "Initial temperature (0 estimates it)")
	f.Float64Var(&ro.tf, "tf", d.Tf, "Final temperature")
	f.IntVar(&ro.maxEval, "maxeval", d.MaxEval, "Maximum objective evaluations (0: unlimited)")
	f.IntVar(&ro.maxAccept, "maxaccept", d.MaxAccept, "Maximum accepted moves (0: unlimited)")
	f.IntVar(&ro.maxIter, "maxiter", d.MaxIter, "Maximum cooling steps")
	f.Float64Var(&ro.boltzmann, "boltzmann", d.Boltzmann, "Boltzmann constant of the acceptance test")
	f.Float64Var(&ro.learnRate, "learn-rate", d.LearnRate, "Step and acceptance scale")
	f.Float64Var(&ro.quench, "quench", d.Quench, "Fast schedule quench exponent")
	f.Float64Var(&ro.m, "m", d.M, "Fast schedule parameter m")
	f.Float64Var(&ro.n, "n", d.N, "Fast schedule parameter n")
	f.IntVar(&ro.dwell, "dwell", d.Dwell, "Candidates per temperature")
	f.Float64Var(&ro.feps, "feps", d.Feps, "Relative stagnation tolerance")
	f.IntVar(&ro.nInit, "ninit", d.NInit, "Samples used to estimate T0")
	f.Uint64Var(&ro.seed, "seed", 0, "Random seed (0: time based)")
	f.BoolVar(&ro.polish, "polish", false, "Refine the result with Nelder-Mead")
	f.BoolVar(&ro.disp, "disp", false, "Log the termination cause")
	f.BoolVar(&ro.asJSON, "json", false, "Print the result as JSON")
	f.StringVar(&ro.save, "save", config.GetEnv("ANNEAL_DB", ""), "Persist the run to this sqlite database")

	return cmd
}

// resolve merges defaults, the run file and changed flags.
func (ro *runOptions) resolve(cmd *cobra.Command) (functions.Function, []float64, anneal.Options, error) {
	opts := anneal.DefaultOptions()
	rf := &runFile{}
	if ro.configPath != "" {
		var err error
		if rf, err = loadRunFile(ro.configPath); err != nil {
			return functions.Function{}, nil, opts, err
		}
	}

	changed := cmd.Flags().Changed
	pickString := func(flag, file, flagVal string) string {
		if changed(flag) || file == "" {
			return flagVal
		}
		return file
	}

	name := pickString("objective", rf.Objective, ro.objective)
	if name == "" {
		return functions.Function{}, nil, opts, fmt.Errorf("--objective is required (one of %v)", functions.Names())
	}
	fn, err := functions.Lookup(name)
	if err != nil {
		return functions.Function{}, nil, opts, err
	}

	if opts.Schedule, err = anneal.ParseSchedule(pickString("schedule", rf.Schedule, ro.schedule)); err != nil {
		return fn, nil, opts, err
	}

	fromFile := func(flag string, dst *float64, file float64, flagVal float64) {
		switch {
		case changed(flag):
			*dst = flagVal
		case file != 0:
			*dst = file
		}
	}
	fromFile("t0", &opts.T0, rf.T0, ro.t0)
	fromFile("boltzmann", &opts.Boltzmann, rf.Boltzmann, ro.boltzmann)
	fromFile("learn-rate", &opts.LearnRate, rf.LearnRate, ro.learnRate)
	fromFile("quench", &opts.Quench, rf.Quench, ro.quench)
	fromFile("m", &opts.M, rf.M, ro.m)
	fromFile("n", &opts.N, rf.N, ro.n)

	fromFileInt := func(flag string, dst *int, file int, flagVal int) {
		switch {
		case changed(flag):
			*dst = flagVal
		case file != 0:
			*dst = file
		}
	}
	fromFileInt("maxeval", &opts.MaxEval, rf.MaxEval, ro.maxEval)
	fromFileInt("maxaccept", &opts.MaxAccept, rf.MaxAccept, ro.maxAccept)
	fromFileInt("maxiter", &opts.MaxIter, rf.MaxIter, ro.maxIter)
	fromFileInt("ninit", &opts.NInit, rf.NInit, ro.nInit)

	switch {
	case changed("tf"):
		opts.Tf = ro.tf
	case rf.Tf != nil:
		opts.Tf = *rf.Tf
	}
	switch {
	case changed("feps"):
		opts.Feps = ro.feps
	case rf.Feps != nil:
		opts.Feps = *rf.Feps
	}
	switch {
	case changed("dwell"):
		opts.Dwell = ro.dwell
	case rf.Dwell != nil:
		opts.Dwell = *rf.Dwell
	}

	opts.Seed = rf.Seed
	if changed("seed") {
		opts.Seed = ro.seed
	}
	opts.Polish = rf.Polish || ro.polish

	pickSlice := func(flag string, file, flagVal []float64) []float64 {
		if changed(flag) || len(file) == 0 {
			return flagVal
		}
		return file
	}
	opts.Lower = pickSlice("lower", rf.Lower, ro.lower)
	opts.Upper = pickSlice("upper", rf.Upper, ro.upper)
	if len(opts.Lower) == 0 {
		opts.Lower = []float64{fn.Lower}
	}
	if len(opts.Upper) == 0 {
		opts.Upper = []float64{fn.Upper}
	}
	x0 := pickSlice("x0", rf.X0, ro.x0)

	dim := ro.dim
	if !changed("dim") && rf.Dim != 0 {
		dim = rf.Dim
	}
	switch {
	case dim > 0:
	case len(x0) > 0:
		dim = len(x0)
	case fn.Dim > 0:
		dim = fn.Dim
	case len(opts.Lower) > 1:
		dim = len(opts.Lower)
	default:
		return fn, nil, opts, fmt.Errorf("cannot infer the dimension of %s; set --dim or --x0", fn.Name)
	}
	if err := fn.CheckDim(dim); err != nil {
		return fn, nil, opts, err
	}

	if len(x0) == 0 {
		bounds, err := anneal.NewBounds(dim, opts.Lower, opts.Upper)
		if err != nil {
			return fn, nil, opts, err
		}
		x0 = make([]float64, dim)
		for i := range x0 {
			x0[i] = bounds.Lower[i] + bounds.Width(i)/2
		}
	} else if len(x0) != dim {
		return fn, nil, opts, fmt.Errorf("--x0 has %d values, dimension is %d", len(x0), dim)
	}

	return fn, x0, opts, nil
}

func (ro *runOptions) run(cmd *cobra.Command) error {
	fn, x0, opts, err := ro.resolve(cmd)
	if err != nil {
		return err
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	logger := ro.root.logger
	if logger == nil {
		logger = logging.New(logging.WarnLevel, cmd.ErrOrStderr())
	}
	opts.Disp = ro.disp
	opts.Logger = logging.NewZapLogger(logger.WithField("objective", fn.Name))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	started := time.Now()
	res, err := anneal.Minimize(ctx, fn.Objective(), x0, opts)
	if err != nil {
		return err
	}
	finished := time.Now()

	if ro.save != "" {
		if err := saveRun(ctx, ro.save, fn.Name, opts, res, started, finished); err != nil {
			return err
		}
	}

	return printResult(cmd.OutOrStdout(), ro.asJSON, fn.Name, opts, res)
}

func saveRun(ctx context.Context, dsn, objective string, opts anneal.Options, res *anneal.Result, started, finished time.Time) error {
	st, err := store.Open(dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.Save(context.WithoutCancel(ctx), store.Run{
		ID:         uuid.NewString(),
		Objective:  objective,
		Schedule:   string(opts.Schedule),
		Status:     int(res.Status),
		Cause:      int(res.Cause),
		Message:    res.Message,
		JMin:       res.JMin,
		XMin:       res.XMin,
		T:          res.T,
		FEval:      res.FEval,
		Iters:      res.Iters,
		Accept:     res.Accept,
		Seed:       opts.Seed,
		StartedAt:  started,
		FinishedAt: finished,
	})
}

type resultOutput struct {
	Objective string    `json:"objective"`
	Schedule  string    `json:"schedule"`
	Seed      uint64    `json:"seed"`
	XMin      []float64 `json:"x_min"`
	JMin      float64   `json:"j_min"`
	T         float64   `json:"t"`
	FEval     int       `json:"feval"`
	Iters     int       `json:"iters"`
	Accept    int       `json:"accept"`
	Status    int       `json:"status"`
	Cause     string    `json:"cause"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Polished  bool      `json:"polished"`
}

func printResult(w io.Writer, asJSON bool, objective string, opts anneal.Options, res *anneal.Result) error {
	out := resultOutput{
		Objective: objective,
		Schedule:  string(opts.Schedule),
		Seed:      opts.Seed,
		XMin:      res.XMin,
		JMin:      res.JMin,
		T:         res.T,
		FEval:     res.FEval,
		Iters:     res.Iters,
		Accept:    res.Accept,
		Status:    int(res.Status),
		Cause:     res.Cause.String(),
		Success:   res.Success,
		Message:   res.Message,
		Polished:  res.Polished,
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "objective: %s (%s, seed %d)\n", out.Objective, out.Schedule, out.Seed)
	fmt.Fprintf(w, "x_min:     %v\n", out.XMin)
	fmt.Fprintf(w, "j_min:     %.10g\n", out.JMin)
	fmt.Fprintf(w, "status:    %d (%s)\n", out.Status, out.Message)
	fmt.Fprintf(w, "success:   %t\n", out.Success)
	fmt.Fprintf(w, "t:         %.6g\n", out.T)
	fmt.Fprintf(w, "feval:     %d\n", out.FEval)
	fmt.Fprintf(w, "iters:     %d\n", out.Iters)
	fmt.Fprintf(w, "accept:    %d\n", out.Accept)
	if out.Polished {
		fmt.Fprintln(w, "polished:  true")
	}
	return nil
}
