// Package mysql persists ledger state in MySQL so a ledger node can restart
// without losing rides or drivers.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"ridesync/internal/repository"
)

const duplicateEntry = 1062

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rides (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		rider VARCHAR(42) NOT NULL,
		driver VARCHAR(42) NOT NULL DEFAULT '',
		origin VARCHAR(255) NOT NULL,
		destination VARCHAR(255) NOT NULL,
		fare BIGINT UNSIGNED NOT NULL,
		status TINYINT UNSIGNED NOT NULL,
		rating TINYINT UNSIGNED NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_rides_status (status),
		INDEX idx_rides_rider (rider),
		INDEX idx_rides_driver (driver)
	)`,
	`CREATE TABLE IF NOT EXISTS drivers (
		address VARCHAR(42) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		vehicle_info VARCHAR(255) NOT NULL,
		license_number VARCHAR(64) NOT NULL,
		is_available BOOLEAN NOT NULL DEFAULT FALSE,
		lat_micro BIGINT NOT NULL DEFAULT 0,
		lng_micro BIGINT NOT NULL DEFAULT 0,
		total_earnings BIGINT UNSIGNED NOT NULL DEFAULT 0,
		rating_sum BIGINT UNSIGNED NOT NULL DEFAULT 0,
		rating_count BIGINT UNSIGNED NOT NULL DEFAULT 0,
		registered_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_drivers_available (is_available)
	)`,
}

// Open connects to MySQL. ParseTime is forced so DATETIME columns scan into
// time.Time, and ClientFoundRows so an UPDATE that changes nothing still
// reports the matched row.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// querier is the part of *sql.DB that *sql.Tx also provides, so the
// repositories run unchanged inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the MySQL repository.Store.
type Store struct {
	db      *sql.DB
	rides   *RideRepository
	drivers *DriverRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, rides: NewRideRepository(db), drivers: NewDriverRepository(db)}
}

func (s *Store) Rides() repository.RideRepository { return s.rides }
func (s *Store) Drivers() repository.DriverRepository { return s.drivers }

// Atomically runs fn inside one database transaction, rolling back if fn
// fails.
func (s *Store) Atomically(ctx context.Context, fn func(rides repository.RideRepository, drivers repository.DriverRepository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&RideRepository{db: tx}, &DriverRepository{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == duplicateEntry
}
