package utils

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		expected  float64
		tolerance float64
	}{
		{
			name:      "Same location",
			lat1:      37.7749,
			lon1:      -122.4194,
			lat2:      37.7749,
			lon2:      -122.4194,
			expected:  0,
			tolerance: 0.001,
		},
		{
			name:      "San Francisco to Oakland",
			lat1:      37.7749,
			lon1:      -122.4194,
			lat2:      37.8044,
			lon2:      -122.2712,
			expected:  13.0,
			tolerance: 1.0,
		},
		{
			name:      "San Francisco to Palo Alto",
			lat1:      37.7749,
			lon1:      -122.4194,
			lat2:      37.4419,
			lon2:      -122.1430,
			expected:  44.5,
			tolerance: 2.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HaversineDistance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("HaversineDistance() = %v, expected %v (+/- %v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestEstimateDuration(t *testing.T) {
	if got := EstimateDuration(5.0); got != 10.0 {
		t.Errorf("EstimateDuration(5) = %v, expected 10", got)
	}
}

func TestFareCalculator_CalculateFare(t *testing.T) {
	milli := WeiPerEther / 1000
	calc := NewFareCalculator(2*milli, milli/2, 10*milli)

	tests := []struct {
		name       string
		distanceKm float64
		expected   uint64
	}{
		{"Minimum fare applies", 1.0, 10 * milli},
		{"Distance fare", 40.0, 22 * milli},
		{"Negative distance treated as zero", -3, 10 * milli},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calc.CalculateFare(tt.distanceKm); got != tt.expected {
				t.Errorf("CalculateFare(%v) = %s, expected %s", tt.distanceKm, FormatEther(got), FormatEther(tt.expected))
			}
		})
	}
}

func TestFareCalculator_RoundsToGwei(t *testing.T) {
	calc := NewFareCalculator(0, 1_234_567_891, 0)
	if got := calc.CalculateFare(1); got%gwei != 0 {
		t.Errorf("Expected fare rounded to gwei, got %d", got)
	}
}

func BenchmarkHaversineDistance(b *testing.B) {
	for i := 0; i < b.N; i++ {
		HaversineDistance(37.7749, -122.4194, 37.8044, -122.2712)
	}
}
