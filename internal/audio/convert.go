package audio

// ToInt16 scales a [-1, 1] float sample to int16, clipping out-of-range values.
func ToInt16(v float64) int16 {
	s := v * 32767
	if s > 32767 {
		s = 32767
	} else if s < -32768 {
		s = -32768
	}
	return int16(s)
}

// Downmix averages a stereo pair into one mono int16 sample.
func Downmix(pair [2]float64) int16 {
	return ToInt16((pair[0] + pair[1]) / 2)
}

// DownmixInto converts stereo samples to mono, writing min(len(dst), len(src)) samples.
func DownmixInto(dst []int16, src [][2]float64) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = Downmix(src[i])
	}
	return n
}
