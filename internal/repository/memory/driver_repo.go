package memory

import (
	"context"
	"sort"
	"sync"

	"ridesync/internal/domain/entities"
	"ridesync/internal/repository"
)

// DriverRepository stores registered drivers keyed by lowercased address.
type DriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*entities.Driver
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

func NewDriverRepository() *DriverRepository {
	return &DriverRepository{
		drivers: make(map[string]*entities.Driver),
	}
}

func (r *DriverRepository) Create(ctx context.Context, driver *entities.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(driver.Address)
	if _, exists := r.drivers[key]; exists {
		return repository.ErrDriverExists
	}
	r.drivers[key] = driver.Clone()
	return nil
}

func (r *DriverRepository) GetByAddress(ctx context.Context, address string) (*entities.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	driver, exists := r.drivers[normalize(address)]
	if !exists {
		return nil, repository.ErrDriverNotFound
	}
	return driver.Clone(), nil
}

func (r *DriverRepository) Update(ctx context.Context, driver *entities.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(driver.Address)
	if _, exists := r.drivers[key]; !exists {
		return repository.ErrDriverNotFound
	}
	r.drivers[key] = driver.Clone()
	return nil
}

// ListAvailable returns available drivers ordered by address.
func (r *DriverRepository) ListAvailable(ctx context.Context) ([]*entities.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var available []*entities.Driver
	for _, driver := range r.drivers {
		if driver.IsAvailable {
			available = append(available, driver.Clone())
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].Address < available[j].Address })
	return available, nil
}

func (r *DriverRepository) checkpoint() func() {
	r.mu.RLock()
	saved := make(map[string]*entities.Driver, len(r.drivers))
	for key, driver := range r.drivers {
		saved[key] = driver
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.drivers = saved
	}
}
