package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RideStatus is the ledger-side lifecycle state of a ride. The numeric values
// are part of the ledger boundary and must not be reordered.
//
// Go Learning Note — iota:
// iota starts at 0 inside a const block and increments by one per line. It is
// the idiomatic way to declare a small integer enum whose values matter on the
// wire. The lifecycle is:
//
//	Requested → Accepted → Started → Completed
//	    ↘ Declined
type RideStatus uint8

const (
	RideStatusRequested RideStatus = iota
	RideStatusAccepted
	RideStatusStarted
	RideStatusCompleted
	RideStatusDeclined
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyRated      = errors.New("ride already rated")
)

var statusNames = map[RideStatus]string{
	RideStatusRequested: "requested",
	RideStatusAccepted:  "accepted",
	RideStatusStarted:   "started",
	RideStatusCompleted: "completed",
	RideStatusDeclined:  "declined",
}

// validTransitions is the state machine. Terminal states map to empty slices.
var validTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested: {RideStatusAccepted, RideStatusDeclined},
	RideStatusAccepted:  {RideStatusStarted},
	RideStatusStarted:   {RideStatusCompleted},
	RideStatusCompleted: {},
	RideStatusDeclined:  {},
}

// predecessors is validTransitions inverted. Every non-initial state has
// exactly one legal predecessor, which is what makes backfilling unambiguous.
var predecessors = func() map[RideStatus]RideStatus {
	m := make(map[RideStatus]RideStatus)
	for from, targets := range validTransitions {
		for _, to := range targets {
			m[to] = from
		}
	}
	return m
}()

func (s RideStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// IsValid reports whether s is one of the five known statuses.
func (s RideStatus) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsTerminal reports whether no transition can leave s.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusDeclined
}

// ParseRideStatus accepts either the lowercase name or the numeric code.
func ParseRideStatus(s string) (RideStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for status, name := range statusNames {
		if s == name || s == fmt.Sprint(uint8(status)) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown ride status %q", s)
}

// CanTransition reports whether from → to is a single legal edge.
func CanTransition(from, to RideStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PathBetween returns the states visited when moving forward from `from` to
// `to`, excluding `from` and including `to`. The boolean is false when `to` is
// not reachable from `from` (a regression or a sibling branch). Equal states
// yield an empty path.
func PathBetween(from, to RideStatus) ([]RideStatus, bool) {
	if !from.IsValid() || !to.IsValid() {
		return nil, false
	}
	if from == to {
		return nil, true
	}

	var reversed []RideStatus
	for cur := to; cur != from; {
		reversed = append(reversed, cur)
		prev, ok := predecessors[cur]
		if !ok {
			return nil, false
		}
		cur = prev
	}

	path := make([]RideStatus, len(reversed))
	for i, s := range reversed {
		path[len(reversed)-1-i] = s
	}
	return path, true
}

// RideID is assigned sequentially by the ledger, starting at 1. Zero means
// "no ride".
type RideID uint64

func (id RideID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}

// Amount is a value in the ledger's base unit (1 ether = 1e18).
type Amount uint64

// Ride is the ledger's record of a single trip. Origin and Destination are
// free text: they may or may not hold a "lat, lng" pair.
type Ride struct {
	ID          RideID     `json:"id"`
	Rider       string     `json:"rider"`
	Driver      string     `json:"driver,omitempty"`
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"`
	Fare        Amount     `json:"fare"`
	Status      RideStatus `json:"status"`
	Rating      uint8      `json:"rating,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewRide creates a Ride in the Requested state. The ID is left for the
// store to assign.
func NewRide(rider, origin, destination string, fare Amount, at time.Time) *Ride {
	return &Ride{
		Rider:       rider,
		Origin:      origin,
		Destination: destination,
		Fare:        fare,
		Status:      RideStatusRequested,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

// Clone returns a copy that shares nothing with r.
//
// Go Learning Note — Copying Structs:
// Dereferencing a pointer (*r) copies every field. Because Ride holds only
// strings, numbers, and a time.Time, the shallow copy is already a deep copy.
func (r *Ride) Clone() *Ride {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (r *Ride) IsTerminal() bool {
	return r.Status.IsTerminal()
}

func (r *Ride) CanTransitionTo(next RideStatus) bool {
	return CanTransition(r.Status, next)
}

// TransitionTo moves the ride along a single legal edge.
func (r *Ride) TransitionTo(next RideStatus, at time.Time) error {
	if !r.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = at
	return nil
}

// Accept assigns the driver and moves the ride to Accepted.
func (r *Ride) Accept(driver string, at time.Time) error {
	if err := r.TransitionTo(RideStatusAccepted, at); err != nil {
		return err
	}
	r.Driver = driver
	return nil
}

func (r *Ride) Decline(at time.Time) error {
	return r.TransitionTo(RideStatusDeclined, at)
}

func (r *Ride) Start(at time.Time) error {
	return r.TransitionTo(RideStatusStarted, at)
}

func (r *Ride) Complete(at time.Time) error {
	return r.TransitionTo(RideStatusCompleted, at)
}

// Involves reports whether address is the rider or the assigned driver.
func (r *Ride) Involves(address string) bool {
	return strings.EqualFold(r.Rider, address) || (r.Driver != "" && strings.EqualFold(r.Driver, address))
}

// Rate records the rider's rating of a completed ride. It does not change
// the status.
func (r *Ride) Rate(rating uint8, at time.Time) error {
	if r.Status != RideStatusCompleted {
		return fmt.Errorf("%w: cannot rate a %s ride", ErrInvalidTransition, r.Status)
	}
	if r.Rating != 0 {
		return ErrAlreadyRated
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	r.Rating = rating
	r.UpdatedAt = at
	return nil
}
