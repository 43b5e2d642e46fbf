package memory

import (
	"context"
	"sync"

	"ridesync/internal/repository"
)

// Store is the in-memory repository.Store.
type Store struct {
	rides   *RideRepository
	drivers *DriverRepository

	// unit serializes Atomically calls.
	unit sync.Mutex
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{rides: NewRideRepository(), drivers: NewDriverRepository()}
}

func (s *Store) Rides() repository.RideRepository { return s.rides }
func (s *Store) Drivers() repository.DriverRepository { return s.drivers }

// Atomically checkpoints both repositories and restores them if fn fails.
// Readers outside the unit may see its writes before it returns; the
// contract's own lock keeps its readers out.
func (s *Store) Atomically(ctx context.Context, fn func(rides repository.RideRepository, drivers repository.DriverRepository) error) error {
	s.unit.Lock()
	defer s.unit.Unlock()

	restoreRides := s.rides.checkpoint()
	restoreDrivers := s.drivers.checkpoint()
	if err := fn(s.rides, s.drivers); err != nil {
		restoreRides()
		restoreDrivers()
		return err
	}
	return nil
}
