package utils

import (
	"math"
)

const (
	EarthRadiusKm = 6371.0

	// gwei is the rounding step for suggested fares.
	gwei uint64 = 1_000_000_000
)

// FareCalculator suggests a fare, in base units, for a trip of a known
// length. The rider may always override the suggestion; the ledger only
// stores what the rider submits.
type FareCalculator struct {
	BaseFare    uint64
	PerKmRate   uint64
	MinimumFare uint64
}

func NewFareCalculator(baseFare, perKmRate, minimumFare uint64) *FareCalculator {
	return &FareCalculator{
		BaseFare:    baseFare,
		PerKmRate:   perKmRate,
		MinimumFare: minimumFare,
	}
}

// CalculateFare returns BaseFare + distance*PerKmRate, clamped to at least
// MinimumFare and rounded to whole gwei.
func (p *FareCalculator) CalculateFare(distanceKm float64) uint64 {
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		distanceKm = 0
	}
	total := p.BaseFare + uint64(math.Round(distanceKm*float64(p.PerKmRate)))
	if total < p.MinimumFare {
		total = p.MinimumFare
	}
	return total / gwei * gwei
}

// HaversineDistance calculates the distance between two points in kilometers
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// EstimateDuration estimates travel time based on distance
// Assumes average speed of 30 km/h in urban areas
func EstimateDuration(distanceKm float64) float64 {
	averageSpeedKmH := 30.0
	return (distanceKm / averageSpeedKmH) * 60 // Convert to minutes
}
