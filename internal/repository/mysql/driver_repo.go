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

const driverColumns = "address, name, vehicle_info, license_number, is_available, lat_micro, lng_micro, " +
	"total_earnings, rating_sum, rating_count, registered_at, updated_at"

// DriverRepository stores locations as micro-degree integers, the same
// encoding the ledger uses on the wire.
type DriverRepository struct {
	db querier
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

func (r *DriverRepository) Create(ctx context.Context, d *entities.Driver) error {
	lat, lng := d.Location.Micro()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO drivers ("+driverColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		strings.ToLower(d.Address), d.Name, d.VehicleInfo, d.LicenseNumber, d.IsAvailable, lat, lng,
		uint64(d.TotalEarnings), d.RatingSum, d.RatingCount, d.RegisteredAt, d.UpdatedAt,
	)
	if isDuplicate(err) {
		return repository.ErrDriverExists
	}
	if err != nil {
		return fmt.Errorf("insert driver: %w", err)
	}
	return nil
}

func (r *DriverRepository) GetByAddress(ctx context.Context, address string) (*entities.Driver, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+driverColumns+" FROM drivers WHERE address = ?", strings.ToLower(address))
	d, err := scanDriver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select driver: %w", err)
	}
	return d, nil
}

func (r *DriverRepository) Update(ctx context.Context, d *entities.Driver) error {
	lat, lng := d.Location.Micro()
	res, err := r.db.ExecContext(ctx,
		`UPDATE drivers SET is_available = ?, lat_micro = ?, lng_micro = ?, total_earnings = ?,
		 rating_sum = ?, rating_count = ?, updated_at = ? WHERE address = ?`,
		d.IsAvailable, lat, lng, uint64(d.TotalEarnings), d.RatingSum, d.RatingCount, d.UpdatedAt,
		strings.ToLower(d.Address),
	)
	if err != nil {
		return fmt.Errorf("update driver: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrDriverNotFound
	}
	return nil
}

func (r *DriverRepository) ListAvailable(ctx context.Context) ([]*entities.Driver, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+driverColumns+" FROM drivers WHERE is_available = TRUE ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	var drivers []*entities.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func scanDriver(s scanner) (*entities.Driver, error) {
	var (
		d        entities.Driver
		lat, lng int64
	)
	err := s.Scan(
		&d.Address, &d.Name, &d.VehicleInfo, &d.LicenseNumber, &d.IsAvailable, &lat, &lng,
		&d.TotalEarnings, &d.RatingSum, &d.RatingCount, &d.RegisteredAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Location = entities.LocationFromMicro(lat, lng)
	return &d, nil
}
