package anneal

import (
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/anneal/internal/optimization"
)

// ScheduleKind names an annealing schedule.
type ScheduleKind string

const (
	Fast      ScheduleKind = "fast"
	Cauchy    ScheduleKind = "cauchy"
	Boltzmann ScheduleKind = "boltzmann"
)

// Schedules lists the supported schedule names.
var Schedules = []ScheduleKind{Fast, Cauchy, Boltzmann}

// ParseSchedule resolves a schedule name, ignoring case and surrounding space.
func ParseSchedule(name string) (ScheduleKind, error) {
	kind := ScheduleKind(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range Schedules {
		if kind == s {
			return kind, nil
		}
	}
	return "", wrap(optimization.ErrInvalidSchedule, "schedule", "unknown schedule %q, want one of fast, cauchy, boltzmann", name)
}

// scheduleParams are fixed for the whole run.
type scheduleParams struct {
	T0        float64
	LearnRate float64
	Quench    float64
	M         float64
	N         float64
}

// schedule proposes candidates and cools the temperature. temperature must
// depend on k and the fixed parameters only. k is the zero-based cooling step.
// fast and cauchy use it as is, so their first step keeps T0. boltzmann
// counts from one to keep log(1+k) away from zero, so its first step is
// T0/log 2, slightly above T0.
type schedule interface {
	candidate(dst, x []float64, T float64, b Bounds, rng *rand.Rand)
	temperature(k int) float64
}

func newSchedule(kind ScheduleKind, p scheduleParams) (schedule, error) {
	switch kind {
	case Fast:
		return &fastSchedule{p: p, c: p.N * math.Exp(-p.N*p.Quench)}, nil
	case Cauchy:
		return &cauchySchedule{p: p}, nil
	case Boltzmann:
		return &boltzmannSchedule{p: p}, nil
	default:
		_, err := ParseSchedule(string(kind))
		return nil, err
	}
}

// fastSchedule draws offsets scaled by the box width and cools as
// T0·exp(-c·k^quench).
type fastSchedule struct {
	p scheduleParams
	c float64
}

func (s *fastSchedule) candidate(dst, x []float64, T float64, b Bounds, rng *rand.Rand) {
	u := distuv.Uniform{Min: 0, Max: 1, Src: rng}
	for i := range x {
		ui := u.Rand()
		y := sign(ui-0.5) * T * (math.Pow(1+1/T, math.Abs(2*ui-1)) - 1)
		dst[i] = x[i] + y*b.Width(i)
	}
}

func (s *fastSchedule) temperature(k int) float64 {
	return s.p.T0 * math.Exp(-s.c*math.Pow(float64(k), s.p.Quench))
}

// cauchySchedule draws heavy-tailed offsets and cools as T0/(1+k).
type cauchySchedule struct {
	p scheduleParams
}

func (s *cauchySchedule) candidate(dst, x []float64, T float64, _ Bounds, rng *rand.Rand) {
	u := distuv.Uniform{Min: -math.Pi / 2, Max: math.Pi / 2, Src: rng}
	for i := range x {
		dst[i] = x[i] + s.p.LearnRate*T*math.Tan(u.Rand())
	}
}

func (s *cauchySchedule) temperature(k int) float64 {
	return s.p.T0 / (1 + float64(k))
}

// boltzmannSchedule draws normal offsets and cools as T0/log(1+k), counting
// cooling steps from one so the first step stays finite.
type boltzmannSchedule struct {
	p scheduleParams
}

func (s *boltzmannSchedule) candidate(dst, x []float64, T float64, b Bounds, rng *rand.Rand) {
	for i := range x {
		std := math.Min(math.Sqrt(T), b.Width(i)/(3*s.p.LearnRate))
		y := distuv.Normal{Mu: 0, Sigma: std, Src: rng}.Rand()
		dst[i] = x[i] + s.p.LearnRate*y
	}
}

func (s *boltzmannSchedule) temperature(k int) float64 {
	return s.p.T0 / math.Log(2+float64(k))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
