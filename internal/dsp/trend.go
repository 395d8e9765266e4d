package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Trend estimates the local slope of each channel by least-squares fitting a
// polynomial to the last window samples and taking its first-derivative
// coefficient at the window centre.
//
// The fit is linear in the samples, so the derivative coefficient is a fixed
// dot product. The weights are solved once; every tick is O(window) per channel
// with no running sums to drift.
type Trend struct {
	window   int
	channels int
	weights  []float64 // oldest to newest

	ring  [][]float64 // ring[slot][channel]
	head  int         // next slot to write
	count int
}

// NewTrend creates an estimator over window samples with a degree-degree fit.
func NewTrend(window, degree, channels int) (*Trend, error) {
	if degree < 1 {
		return nil, fmt.Errorf("trend degree must be at least 1, got %d", degree)
	}
	if window < degree+2 {
		return nil, fmt.Errorf("trend window %d too short for degree %d", window, degree)
	}
	weights, err := derivativeWeights(window, degree)
	if err != nil {
		return nil, err
	}

	ring := make([][]float64, window)
	for i := range ring {
		ring[i] = make([]float64, channels)
	}
	return &Trend{
		window:   window,
		channels: channels,
		weights:  weights,
		ring:     ring,
	}, nil
}

// PrimingTicks is the number of samples absorbed before the first output.
func (t *Trend) PrimingTicks() int {
	return t.window - 1
}

// Primed reports whether the window is full.
func (t *Trend) Primed() bool {
	return t.count >= t.window
}

// Push records v and returns the per-channel derivative. ok is false until
// the window has filled; no output is produced before then.
func (t *Trend) Push(v []float64) (out []float64, ok bool) {
	if len(v) != t.channels {
		panic(fmt.Sprintf("dsp: trend input has %d channels, want %d", len(v), t.channels))
	}
	copy(t.ring[t.head], v)
	t.head = (t.head + 1) % t.window
	if t.count < t.window {
		t.count++
	}
	if !t.Primed() {
		return nil, false
	}

	out = make([]float64, t.channels)
	// after the write, head points at the oldest slot
	for k, w := range t.weights {
		row := t.ring[(t.head+k)%t.window]
		for ch := range out {
			out[ch] += w * row[ch]
		}
	}
	return out, true
}

// derivativeWeights returns w such that w·y is the linear coefficient of the
// least-squares polynomial through (x_k, y_k), x_k = k - (window-1)/2.
func derivativeWeights(window, degree int) ([]float64, error) {
	half := float64(window-1) / 2
	scale := 1 / half // keeps the Vandermonde columns near unit size

	x := mat.NewDense(window, degree+1, nil)
	for k := 0; k < window; k++ {
		xs := (float64(k) - half) * scale
		p := 1.0
		for j := 0; j <= degree; j++ {
			x.Set(k, j, p)
			p *= xs
		}
	}

	ones := make([]float64, window)
	for i := range ones {
		ones[i] = 1
	}
	var pinv mat.Dense
	if err := pinv.Solve(x, mat.NewDiagDense(window, ones)); err != nil {
		return nil, fmt.Errorf("solve trend fit: %w", err)
	}

	weights := make([]float64, window)
	for k := range weights {
		// d/dx of a1*(scale*x) is a1*scale
		weights[k] = pinv.At(1, k) * scale
	}
	return weights, nil
}
