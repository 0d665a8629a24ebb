package anneal

import "math"

const historySize = 4

// objectiveRing keeps the best objective recorded at the end of the last
// historySize cooling steps. The oldest entry is overwritten first.
type objectiveRing struct {
	values [historySize]float64
	next   int
	count  int
}

func (r *objectiveRing) push(v float64) {
	r.values[r.next] = v
	r.next = (r.next + 1) % historySize
	if r.count < historySize {
		r.count++
	}
}

func (r *objectiveRing) full() bool {
	return r.count == historySize
}

// oldest is only meaningful when count > 0.
func (r *objectiveRing) oldest() float64 {
	if r.count < historySize {
		return r.values[0]
	}
	return r.values[r.next]
}

func (r *objectiveRing) newest() float64 {
	return r.values[(r.next+historySize-1)%historySize]
}

// stagnant reports whether the ring is full and the relative change between
// its oldest and newest entries is below feps.
func (r *objectiveRing) stagnant(feps float64) bool {
	if !r.full() {
		return false
	}
	oldest, newest := r.oldest(), r.newest()
	scale := math.Max(math.Abs(oldest), math.SmallestNonzeroFloat64)
	return math.Abs(oldest-newest)/scale < feps
}
