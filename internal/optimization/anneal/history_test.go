package anneal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectiveRing(t *testing.T) {
	var r objectiveRing
	assert.False(t, r.full())
	assert.False(t, r.stagnant(1))

	r.push(10)
	assert.Equal(t, 10.0, r.oldest())
	assert.Equal(t, 10.0, r.newest())

	r.push(9)
	r.push(8)
	assert.False(t, r.full())
	assert.Equal(t, 10.0, r.oldest())
	assert.Equal(t, 8.0, r.newest())

	r.push(7)
	assert.True(t, r.full())
	assert.Equal(t, 10.0, r.oldest())
	assert.Equal(t, 7.0, r.newest())

	// The oldest entry is evicted first.
	r.push(6)
	assert.Equal(t, 9.0, r.oldest())
	assert.Equal(t, 6.0, r.newest())
	assert.Equal(t, historySize, r.count)
}

func TestObjectiveRingStagnant(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		feps   float64
		want   bool
	}{
		{"not full", []float64{1, 1, 1}, 1e-6, false},
		{"flat", []float64{2, 2, 2, 2}, 1e-6, true},
		{"improving", []float64{2, 1.5, 1, 0.5}, 1e-6, false},
		{"tiny relative change", []float64{1000, 1000, 1000, 1000 - 1e-5}, 1e-6, true},
		{"zero values", []float64{0, 0, 0, 0}, 1e-6, true},
		{"zero tolerance", []float64{2, 2, 2, 2}, 0, false},
		{"only last window counts", []float64{100, 5, 5, 5, 5}, 1e-6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r objectiveRing
			for _, v := range tt.values {
				r.push(v)
			}
			assert.Equal(t, tt.want, r.stagnant(tt.feps))
		})
	}
}
