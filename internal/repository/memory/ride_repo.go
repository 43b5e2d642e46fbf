// Package memory keeps ledger state in process memory. It is the default
// store for the ledger node and for tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ridesync/internal/domain/entities"
	"ridesync/internal/repository"
)

// RideRepository stores rides in memory, keyed by their sequential ID.
//
// Go Learning Note — sync.RWMutex:
// Reads (GetByID, List*) take the shared read lock so they can run in
// parallel; writes take the exclusive lock. Every method clones on the way in
// and out, so no caller ever holds a pointer into the map.
type RideRepository struct {
	mu     sync.RWMutex
	rides  map[entities.RideID]*entities.Ride
	nextID entities.RideID
}

var _ repository.RideRepository = (*RideRepository)(nil)

func NewRideRepository() *RideRepository {
	return &RideRepository{
		rides:  make(map[entities.RideID]*entities.Ride),
		nextID: 1,
	}
}

func (r *RideRepository) Create(ctx context.Context, ride *entities.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride.ID = r.nextID
	r.nextID++
	r.rides[ride.ID] = ride.Clone()
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id entities.RideID) (*entities.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ride, exists := r.rides[id]
	if !exists {
		return nil, repository.ErrRideNotFound
	}
	return ride.Clone(), nil
}

func (r *RideRepository) Update(ctx context.Context, ride *entities.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rides[ride.ID]; !exists {
		return repository.ErrRideNotFound
	}
	r.rides[ride.ID] = ride.Clone()
	return nil
}

// ListByStatus is an O(n) scan. The ledger only ever holds demo-sized data.
func (r *RideRepository) ListByStatus(ctx context.Context, status entities.RideStatus) ([]*entities.Ride, error) {
	return r.filter(func(ride *entities.Ride) bool { return ride.Status == status }), nil
}

func (r *RideRepository) ListByParticipant(ctx context.Context, address string) ([]*entities.Ride, error) {
	return r.filter(func(ride *entities.Ride) bool { return ride.Involves(address) }), nil
}

func (r *RideRepository) Count(ctx context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.rides)), nil
}

func (r *RideRepository) filter(keep func(*entities.Ride) bool) []*entities.Ride {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rides []*entities.Ride
	for _, ride := range r.rides {
		if keep(ride) {
			rides = append(rides, ride.Clone())
		}
	}
	sort.Slice(rides, func(i, j int) bool { return rides[i].ID < rides[j].ID })
	return rides
}

// checkpoint returns a func that puts the repository back to its current
// contents. Stored rides are replaced on Update, never mutated, so sharing
// the pointers is safe.
func (r *RideRepository) checkpoint() func() {
	r.mu.RLock()
	saved := make(map[entities.RideID]*entities.Ride, len(r.rides))
	for id, ride := range r.rides {
		saved[id] = ride
	}
	nextID := r.nextID
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.rides = saved
		r.nextID = nextID
	}
}

func normalize(address string) string {
	return strings.ToLower(address)
}
