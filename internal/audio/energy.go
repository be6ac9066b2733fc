package audio

import "math"

// CalculateRMS calculates the root mean square energy of float samples.
// An empty slice has zero energy.
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// IsSilent reports whether a chunk's RMS energy is below threshold
func IsSilent(samples []float32, threshold float64) bool {
	return CalculateRMS(samples) < threshold
}

// MeanCenter subtracts the mean from every sample in place and returns the slice
func MeanCenter(samples []float32) []float32 {
	if len(samples) == 0 {
		return samples
	}

	sum := 0.0
	for _, s := range samples {
		sum += float64(s)
	}
	mean := float32(sum / float64(len(samples)))

	for i := range samples {
		samples[i] -= mean
	}
	return samples
}
