package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Normalizer rescales each channel to a z-score over a rolling window.
// Mean and deviation are recomputed from the window every tick.
type Normalizer struct {
	window   int
	channels int
	ring     [][]float64 // ring[channel][slot]
	head     int
	count    int
}

// NewNormalizer creates a Normalizer over the last window vectors.
func NewNormalizer(window, channels int) *Normalizer {
	if window <= 0 {
		panic("dsp: normalizer window must be > 0")
	}
	ring := make([][]float64, channels)
	for i := range ring {
		ring[i] = make([]float64, window)
	}
	return &Normalizer{window: window, channels: channels, ring: ring}
}

// Push adds v to the window and returns (v - mean) / stddev per channel,
// including v itself in the statistics. A zero deviation is replaced by 1,
// so a constant channel yields 0 rather than NaN.
func (n *Normalizer) Push(v []float64) []float64 {
	if len(v) != n.channels {
		panic(fmt.Sprintf("dsp: normalizer input has %d channels, want %d", len(v), n.channels))
	}
	for ch, x := range v {
		n.ring[ch][n.head] = x
	}
	n.head = (n.head + 1) % n.window
	if n.count < n.window {
		n.count++
	}

	out := make([]float64, n.channels)
	for ch, x := range v {
		window := n.ring[ch][:n.count]
		// A constant window has zero deviation, but the computed mean and
		// deviation of e.g. repeated 0.1 carry rounding error. Test it exactly.
		if constant(window) {
			continue
		}
		mean, std := stat.PopMeanStdDev(window, nil)
		if std == 0 {
			std = 1
		}
		out[ch] = (x - mean) / std
	}
	return out
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
