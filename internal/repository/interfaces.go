// Package repository declares the storage ports behind the ledger. The
// memory and mysql packages implement them.
package repository

import (
	"context"
	"errors"

	"ridesync/internal/domain/entities"
)

var (
	ErrRideNotFound   = errors.New("ride not found")
	ErrDriverNotFound = errors.New("driver not found")
	ErrDriverExists   = errors.New("driver already registered")
)

// RideRepository stores ride records. Implementations return copies, so a
// caller mutating a returned ride never changes stored state without Update.
type RideRepository interface {
	// Create assigns the next sequential ID to ride and stores it.
	Create(ctx context.Context, ride *entities.Ride) error
	GetByID(ctx context.Context, id entities.RideID) (*entities.Ride, error)
	Update(ctx context.Context, ride *entities.Ride) error
	// ListByStatus returns matching rides ordered by ID.
	ListByStatus(ctx context.Context, status entities.RideStatus) ([]*entities.Ride, error)
	// ListByParticipant returns rides where address is rider or driver,
	// ordered by ID.
	ListByParticipant(ctx context.Context, address string) ([]*entities.Ride, error)
	Count(ctx context.Context) (uint64, error)
}

type DriverRepository interface {
	Create(ctx context.Context, driver *entities.Driver) error
	GetByAddress(ctx context.Context, address string) (*entities.Driver, error)
	Update(ctx context.Context, driver *entities.Driver) error
	ListAvailable(ctx context.Context) ([]*entities.Driver, error)
}

// Store bundles both repositories with a unit of work. Atomically runs fn
// against repositories bound to one transaction: if fn returns an error,
// none of its writes persist.
type Store interface {
	Rides() RideRepository
	Drivers() DriverRepository
	Atomically(ctx context.Context, fn func(rides RideRepository, drivers DriverRepository) error) error
}
