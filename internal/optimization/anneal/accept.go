package anneal

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// metropolis decides whether a move from jOld to jNew is taken at
// temperature T. Improvements are always taken without a draw; otherwise one
// uniform number is drawn and compared against the scaled Boltzmann factor.
func metropolis(jOld, jNew, T, boltzmann, learnRate float64, rng *rand.Rand) bool {
	if jNew <= jOld {
		return true
	}
	p := math.Exp(-(jNew - jOld) / (boltzmann * T * learnRate))
	return distuv.Uniform{Min: 0, Max: 1, Src: rng}.Rand() < p
}
