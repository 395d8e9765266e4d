// Package dsp holds the per-tick signal chain: power spectrum, band buckets,
// smoothed trends, rolling normalization and thresholds.
package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum computes the power spectrum of fixed-size frames.
type Spectrum struct {
	size  int
	fft   *fourier.CmplxFFT
	seq   []complex128
	coeff []complex128
}

// NewSpectrum creates a transform for frames of size samples.
func NewSpectrum(size int) *Spectrum {
	if size <= 0 {
		panic("dsp: spectrum size must be > 0")
	}
	return &Spectrum{
		size:  size,
		fft:   fourier.NewCmplxFFT(size),
		seq:   make([]complex128, size),
		coeff: make([]complex128, size),
	}
}

// Size returns the frame length the transform expects.
func (s *Spectrum) Size() int {
	return s.size
}

// Power returns |X[k]|^2 for every DFT coefficient of frame, same length as frame.
// A frame of the wrong length is a caller bug and panics.
func (s *Spectrum) Power(frame []int16) []float64 {
	if len(frame) != s.size {
		panic(fmt.Sprintf("dsp: frame length %d, want %d", len(frame), s.size))
	}
	for i, v := range frame {
		s.seq[i] = complex(float64(v), 0)
	}
	s.coeff = s.fft.Coefficients(s.coeff, s.seq)

	power := make([]float64, s.size)
	for i, c := range s.coeff {
		power[i] = real(c)*real(c) + imag(c)*imag(c)
	}
	return power
}
