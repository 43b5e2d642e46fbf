package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"ridesync/internal/domain/entities"
	"ridesync/internal/repository"
)

var rideCols = []string{"id", "rider", "driver", "origin", "destination", "fare", "status", "rating", "created_at", "updated_at"}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS rides").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS drivers").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRideRepository_CreateAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO rides").WillReturnResult(sqlmock.NewResult(7, 1))

	repo := NewRideRepository(db)
	ride := entities.NewRide("0xRider", "San Francisco", "Palo Alto", 10_000_000_000_000_000, time.Now())
	if err := repo.Create(context.Background(), ride); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ride.ID != 7 {
		t.Errorf("Expected ride ID 7, got %d", ride.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRideRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM rides WHERE id = ?").WithArgs(3).
		WillReturnRows(sqlmock.NewRows(rideCols).
			AddRow(3, "0xrider", "0xdriver", "a", "b", 1000, 2, 0, now, now))
	mock.ExpectQuery("SELECT (.+) FROM rides WHERE id = ?").WithArgs(4).
		WillReturnRows(sqlmock.NewRows(rideCols))

	repo := NewRideRepository(db)
	ride, err := repo.GetByID(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if ride.Status != entities.RideStatusStarted || ride.Fare != 1000 || ride.Driver != "0xdriver" {
		t.Errorf("Unexpected ride: %+v", ride)
	}

	if _, err := repo.GetByID(context.Background(), 4); !errors.Is(err, repository.ErrRideNotFound) {
		t.Errorf("Expected ErrRideNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRideRepository_UpdateMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE rides SET").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRideRepository(db)
	err = repo.Update(context.Background(), &entities.Ride{ID: 99, Status: entities.RideStatusAccepted})
	if !errors.Is(err, repository.ErrRideNotFound) {
		t.Errorf("Expected ErrRideNotFound, got %v", err)
	}
}

func TestRideRepository_ListByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM rides WHERE status = \\? ORDER BY id").
		WillReturnRows(sqlmock.NewRows(rideCols).
			AddRow(1, "0xa", "", "a", "b", 1, 0, 0, now, now).
			AddRow(5, "0xb", "", "c", "d", 2, 0, 0, now, now))

	rides, err := NewRideRepository(db).ListByStatus(context.Background(), entities.RideStatusRequested)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(rides) != 2 || rides[0].ID != 1 || rides[1].ID != 5 {
		t.Errorf("Expected rides [1 5], got %v", rides)
	}
}

func TestDriverRepository_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO drivers").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	d := entities.NewDriver("0xdriver", "John Doe", "Tesla", "DL1", time.Now())
	err = NewDriverRepository(db).Create(context.Background(), d)
	if !errors.Is(err, repository.ErrDriverExists) {
		t.Errorf("Expected ErrDriverExists, got %v", err)
	}
}

func TestDriverRepository_GetByAddressDecodesLocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Now()
	cols := []string{"address", "name", "vehicle_info", "license_number", "is_available", "lat_micro", "lng_micro",
		"total_earnings", "rating_sum", "rating_count", "registered_at", "updated_at"}
	mock.ExpectQuery("SELECT (.+) FROM drivers WHERE address = ?").WithArgs("0xdriver").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("0xdriver", "John Doe", "Tesla", "DL1", true, 37774900, -122419400, 5000, 9, 2, now, now))

	d, err := NewDriverRepository(db).GetByAddress(context.Background(), "0xDRIVER")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if d.Location.Latitude != 37.7749 || d.Location.Longitude != -122.4194 {
		t.Errorf("Expected decoded location 37.7749,-122.4194, got %v", d.Location)
	}
	if !d.IsAvailable || d.AverageRating() != 4.5 {
		t.Errorf("Unexpected driver: %+v", d)
	}
}

func TestStore_AtomicallyRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	errDown := errors.New("db down")
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rides SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE drivers SET").WillReturnError(errDown)
	mock.ExpectRollback()

	now := time.Now()
	ride := &entities.Ride{ID: 3, Driver: "0xdriver", Status: entities.RideStatusCompleted, UpdatedAt: now}
	driver := entities.NewDriver("0xdriver", "John Doe", "Tesla", "DL1", now)

	err = NewStore(db).Atomically(context.Background(), func(rides repository.RideRepository, drivers repository.DriverRepository) error {
		if err := rides.Update(context.Background(), ride); err != nil {
			return err
		}
		return drivers.Update(context.Background(), driver)
	})
	if !errors.Is(err, errDown) {
		t.Errorf("Expected db down error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStore_AtomicallyCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE rides SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE drivers SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now()
	ride := &entities.Ride{ID: 3, Driver: "0xdriver", Status: entities.RideStatusCompleted, UpdatedAt: now}
	driver := entities.NewDriver("0xdriver", "John Doe", "Tesla", "DL1", now)

	err = NewStore(db).Atomically(context.Background(), func(rides repository.RideRepository, drivers repository.DriverRepository) error {
		if err := rides.Update(context.Background(), ride); err != nil {
			return err
		}
		return drivers.Update(context.Background(), driver)
	})
	if err != nil {
		t.Errorf("Atomically failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
