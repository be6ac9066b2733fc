package audio

import (
	"math"
	"testing"
)

func TestCalculateRMS(t *testing.T) {
	samples := []float32{0.1, -0.1, 0.2, -0.2}
	rms := CalculateRMS(samples)

	// sqrt((0.01 + 0.01 + 0.04 + 0.04) / 4)
	expected := math.Sqrt(0.025)
	if math.Abs(rms-expected) > 1e-6 {
		t.Errorf("Expected RMS around %.6f, got %.6f", expected, rms)
	}

	if CalculateRMS(nil) != 0 {
		t.Error("Expected zero RMS for empty input")
	}
}

func TestIsSilent(t *testing.T) {
	loud := []float32{0.5, -0.5, 0.5}
	if IsSilent(loud, 0.008) {
		t.Error("Expected loud samples to not be silence")
	}

	quiet := []float32{0.001, -0.001, 0.001}
	if !IsSilent(quiet, 0.008) {
		t.Error("Expected quiet samples to be silence")
	}
}

func TestMeanCenter(t *testing.T) {
	samples := []float32{1, 2, 3, 4}
	MeanCenter(samples)

	want := []float32{-1.5, -0.5, 0.5, 1.5}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-6 {
			t.Errorf("Sample %d: expected %f, got %f", i, want[i], samples[i])
		}
	}

	if got := MeanCenter(nil); len(got) != 0 {
		t.Error("Expected empty result for empty input")
	}
}
