// Package entities defines the core domain models for ride synchronization.
// These structs represent the ledger's records (Ride, Driver, Location) and
// live in the innermost layer of the architecture: they have no dependencies
// on databases, HTTP, or external services.
//
// Go Learning Note — "internal/" directory:
// Packages under internal/ cannot be imported by code outside this module. Go
// enforces this at the compiler level.
package entities

import (
	"errors"
	"time"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// Driver is a registered service provider, keyed by ledger address.
//
// Go Learning Note — Struct Tags:
// The `json:"address"` annotations control how encoding/json serializes each
// field. Gin reuses the same tags when it renders a struct with c.JSON.
type Driver struct {
	Address       string    `json:"address"`
	Name          string    `json:"name"`
	VehicleInfo   string    `json:"vehicle_info"`
	LicenseNumber string    `json:"license_number"`
	IsAvailable   bool      `json:"is_available"`
	Location      Location  `json:"location"`
	TotalEarnings Amount    `json:"total_earnings"`
	RatingSum     uint64    `json:"rating_sum"`
	RatingCount   uint64    `json:"rating_count"`
	RegisteredAt  time.Time `json:"registered_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewDriver creates a Driver that is not yet available. Drivers must
// explicitly go online before they see ride requests.
func NewDriver(address, name, vehicleInfo, licenseNumber string, at time.Time) *Driver {
	return &Driver{
		Address:       address,
		Name:          name,
		VehicleInfo:   vehicleInfo,
		LicenseNumber: licenseNumber,
		RegisteredAt:  at,
		UpdatedAt:     at,
	}
}

func (d *Driver) Clone() *Driver {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func (d *Driver) SetAvailability(available bool, at time.Time) {
	d.IsAvailable = available
	d.UpdatedAt = at
}

// UpdateLocation records an advisory position. It never gates a transition.
func (d *Driver) UpdateLocation(loc Location, at time.Time) {
	d.Location = loc
	d.UpdatedAt = at
}

// Credit adds a completed ride's fare to the driver's earnings.
func (d *Driver) Credit(fare Amount, at time.Time) {
	d.TotalEarnings += fare
	d.UpdatedAt = at
}

func (d *Driver) AddRating(rating uint8, at time.Time) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	d.RatingSum += uint64(rating)
	d.RatingCount++
	d.UpdatedAt = at
	return nil
}

// AverageRating returns 0 for a driver nobody has rated yet.
func (d *Driver) AverageRating() float64 {
	if d.RatingCount == 0 {
		return 0
	}
	return float64(d.RatingSum) / float64(d.RatingCount)
}
