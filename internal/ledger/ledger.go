// Package ledger defines the boundary between ride clients and the shared
// ledger that holds ride and driver state. Clients never talk to each other;
// everything they know about a ride comes from a Reader, and everything they
// change goes through a Writer as a signed transaction.
package ledger

import (
	"context"
	"time"

	"ridesync/internal/domain/entities"
)

// Receipt confirms that a transaction was mined. RideID is set for
// transactions that create or target a ride.
type Receipt struct {
	TxHash      string          `json:"tx_hash"`
	BlockNumber uint64          `json:"block_number"`
	RideID      entities.RideID `json:"ride_id,omitempty"`
	MinedAt     time.Time       `json:"mined_at"`
}

// Reader is the side-effect free half of the ledger. Every method may fail
// with ErrTransientRead; ReadRide and ReadDriver may also fail with
// ErrNotFound.
type Reader interface {
	ReadRide(ctx context.Context, id entities.RideID) (*entities.Ride, error)
	// ReadActiveRequests returns every ride still in Requested. Order is not
	// stable between calls.
	ReadActiveRequests(ctx context.Context) ([]*entities.Ride, error)
	ReadDriver(ctx context.Context, address string) (*entities.Driver, error)
	ReadAccountRides(ctx context.Context, address string) ([]entities.RideID, error)
}

// Writer submits transactions on behalf of Account. Submissions fail with
// ErrTransactionRejected when the wallet refuses to sign and with
// ErrTransactionReverted when a ledger precondition does not hold. A
// submission is never retried by the caller's library code.
type Writer interface {
	Account() string
	SubmitRideRequest(ctx context.Context, origin, destination string, fare entities.Amount) (*Receipt, error)
	SubmitAccept(ctx context.Context, id entities.RideID) (*Receipt, error)
	SubmitDecline(ctx context.Context, id entities.RideID) (*Receipt, error)
	SubmitStart(ctx context.Context, id entities.RideID) (*Receipt, error)
	SubmitComplete(ctx context.Context, id entities.RideID) (*Receipt, error)
	SubmitRating(ctx context.Context, id entities.RideID, rating uint8) (*Receipt, error)
	SubmitRegistration(ctx context.Context, name, vehicleInfo, licenseNumber string) (*Receipt, error)
	SubmitAvailability(ctx context.Context, available bool) (*Receipt, error)
	SubmitLocation(ctx context.Context, loc entities.Location) (*Receipt, error)
}

// Client is a Reader and a Writer bound to one account.
type Client interface {
	Reader
	Writer
}

// Subscriber delivers ledger events. It is an optional capability: callers
// must keep working by polling when it is nil or when Subscribe fails. The
// returned channel is closed when ctx is done or the stream ends.
type Subscriber interface {
	Subscribe(ctx context.Context, types ...EventType) (<-chan Event, error)
}

// Publisher forwards ledger events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
