package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ridesync/internal/domain/entities"
	"ridesync/internal/repository"
)

const rideColumns = "id, rider, driver, origin, destination, fare, status, rating, created_at, updated_at"

type RideRepository struct {
	db querier
}

var _ repository.RideRepository = (*RideRepository)(nil)

func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{db: db}
}

// Create relies on AUTO_INCREMENT for the sequential ride ID.
func (r *RideRepository) Create(ctx context.Context, ride *entities.Ride) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rides (rider, driver, origin, destination, fare, status, rating, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToLower(ride.Rider), strings.ToLower(ride.Driver), ride.Origin, ride.Destination,
		uint64(ride.Fare), uint8(ride.Status), ride.Rating, ride.CreatedAt, ride.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert ride id: %w", err)
	}
	ride.ID = entities.RideID(id)
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id entities.RideID) (*entities.Ride, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+rideColumns+" FROM rides WHERE id = ?", uint64(id))
	ride, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select ride %d: %w", id, err)
	}
	return ride, nil
}

func (r *RideRepository) Update(ctx context.Context, ride *entities.Ride) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rides SET driver = ?, status = ?, rating = ?, updated_at = ? WHERE id = ?`,
		strings.ToLower(ride.Driver), uint8(ride.Status), ride.Rating, ride.UpdatedAt, uint64(ride.ID),
	)
	if err != nil {
		return fmt.Errorf("update ride %d: %w", ride.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrRideNotFound
	}
	return nil
}

func (r *RideRepository) ListByStatus(ctx context.Context, status entities.RideStatus) ([]*entities.Ride, error) {
	return r.list(ctx, "SELECT "+rideColumns+" FROM rides WHERE status = ? ORDER BY id", uint8(status))
}

func (r *RideRepository) ListByParticipant(ctx context.Context, address string) ([]*entities.Ride, error) {
	address = strings.ToLower(address)
	return r.list(ctx, "SELECT "+rideColumns+" FROM rides WHERE rider = ? OR driver = ? ORDER BY id", address, address)
}

func (r *RideRepository) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rides").Scan(&n); err != nil {
		return 0, fmt.Errorf("count rides: %w", err)
	}
	return n, nil
}

func (r *RideRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entities.Ride, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	var rides []*entities.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(s scanner) (*entities.Ride, error) {
	var ride entities.Ride
	err := s.Scan(
		&ride.ID, &ride.Rider, &ride.Driver, &ride.Origin, &ride.Destination,
		&ride.Fare, &ride.Status, &ride.Rating, &ride.CreatedAt, &ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}
