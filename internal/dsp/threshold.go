package dsp

// Thresholder subtracts a per-channel baseline. The threshold list cycles
// when it is shorter than the channel count.
type Thresholder struct {
	thresholds []float64
}

// NewThresholder creates a Thresholder. thresholds must not be empty.
func NewThresholder(thresholds []float64) *Thresholder {
	if len(thresholds) == 0 {
		panic("dsp: at least one threshold is required")
	}
	return &Thresholder{thresholds: thresholds}
}

// Apply returns v[i] - threshold[i mod len]. Positive means above baseline.
func (t *Thresholder) Apply(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x - t.thresholds[i%len(t.thresholds)]
	}
	return out
}
