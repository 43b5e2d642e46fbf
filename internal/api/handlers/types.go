package handlers

import "ridesync/internal/domain/entities"

// Request and response bodies shared by the gateway and its HTTP client.

type RequestRideRequest struct {
	Origin      string          `json:"origin" binding:"required"`
	Destination string          `json:"destination" binding:"required"`
	Fare        entities.Amount `json:"fare" binding:"required"`
}

type RateDriverRequest struct {
	Rating uint8 `json:"rating" binding:"required"`
}

type RegisterDriverRequest struct {
	Name          string `json:"name" binding:"required"`
	VehicleInfo   string `json:"vehicle_info"`
	LicenseNumber string `json:"license_number"`
}

type AvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// LocationRequest uses pointers so that a zero coordinate is still present.
type LocationRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type AccountRidesResponse struct {
	Account string            `json:"account"`
	Rides   []entities.RideID `json:"rides"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Block  uint64 `json:"block"`
	Rides  uint64 `json:"rides"`
}
