package services

import "errors"

var (
	// ErrActionNotAllowed is returned before signing when the ride's current
	// ledger state does not permit the action for this actor.
	ErrActionNotAllowed = errors.New("action not allowed for ride in its current state")
	ErrActiveRide       = errors.New("a ride is already in progress")
	ErrNoActiveRide     = errors.New("no active ride")
	ErrFeedDisabled     = errors.New("request feed is disabled")
	ErrNotRegistered    = errors.New("driver is not registered")
	ErrInvalidRideID    = errors.New("invalid ride id")
	ErrSubmissionBusy   = errors.New("a submission for this ride is already pending")
)
