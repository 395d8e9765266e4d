package dsp

import "math"

// indexTolerance absorbs float error in band edges, so 0.29*100 selects from 29, not 28.
const indexTolerance = 1e-9

// Band selects spectrum indices [Lo*size, Hi*size) and scales their sum by Weight.
type Band struct {
	Lo     float64
	Hi     float64
	Weight float64
}

// Bucketizer reduces a power spectrum to one scalar per channel spec.
// Bands may overlap within and across channels.
type Bucketizer struct {
	specs [][]Band
}

// NewBucketizer creates a Bucketizer with one output channel per spec.
func NewBucketizer(specs [][]Band) *Bucketizer {
	return &Bucketizer{specs: specs}
}

// Channels returns the number of output channels.
func (b *Bucketizer) Channels() int {
	return len(b.specs)
}

// Reduce returns the weighted band sums of power.
func (b *Bucketizer) Reduce(power []float64) []float64 {
	size := float64(len(power))
	out := make([]float64, len(b.specs))
	for ch, spec := range b.specs {
		var total float64
		for _, band := range spec {
			lo := clampIndex(bandIndex(band.Lo, size), len(power))
			hi := clampIndex(bandIndex(band.Hi, size), len(power))
			var sum float64
			for _, p := range power[lo:hi] {
				sum += p
			}
			total += band.Weight * sum
		}
		out[ch] = total
	}
	return out
}

func bandIndex(frac, size float64) int {
	return int(math.Floor(frac*size + indexTolerance))
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
