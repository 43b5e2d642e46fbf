package ledger

import (
	"time"

	"ridesync/internal/domain/entities"
)

// EventType names a ledger event. The values match the contract event names
// so that relayed payloads stay recognisable.
type EventType string

const (
	EventRideRequested             EventType = "RideRequested"
	EventRideAccepted              EventType = "RideAccepted"
	EventRideDeclined              EventType = "RideDeclined"
	EventRideStarted               EventType = "RideStarted"
	EventRideCompleted             EventType = "RideCompleted"
	EventRideRated                 EventType = "RideRated"
	EventDriverRegistered          EventType = "DriverRegistered"
	EventDriverAvailabilityUpdated EventType = "DriverAvailabilityUpdated"
	EventDriverLocationUpdated     EventType = "DriverLocationUpdated"
)

// AllEventTypes lists every event the ledger emits.
var AllEventTypes = []EventType{
	EventRideRequested,
	EventRideAccepted,
	EventRideDeclined,
	EventRideStarted,
	EventRideCompleted,
	EventRideRated,
	EventDriverRegistered,
	EventDriverAvailabilityUpdated,
	EventDriverLocationUpdated,
}

// RideStatusEvents are the events that change a ride's status.
var RideStatusEvents = []EventType{
	EventRideRequested,
	EventRideAccepted,
	EventRideDeclined,
	EventRideStarted,
	EventRideCompleted,
}

var statusEvents = map[entities.RideStatus]EventType{
	entities.RideStatusRequested: EventRideRequested,
	entities.RideStatusAccepted:  EventRideAccepted,
	entities.RideStatusDeclined:  EventRideDeclined,
	entities.RideStatusStarted:   EventRideStarted,
	entities.RideStatusCompleted: EventRideCompleted,
}

// EventForStatus returns the event emitted when a ride enters status.
func EventForStatus(status entities.RideStatus) EventType {
	return statusEvents[status]
}

// Event is a single ledger log entry. Account is the transaction sender.
// Events are hints: receivers re-read the ledger instead of trusting the
// payload.
type Event struct {
	Type        EventType            `json:"type"`
	RideID      entities.RideID      `json:"ride_id,omitempty"`
	Account     string               `json:"account"`
	Status      *entities.RideStatus `json:"status,omitempty"`
	BlockNumber uint64               `json:"block_number"`
	TxHash      string               `json:"tx_hash"`
	Timestamp   time.Time            `json:"timestamp"`
}

// Matches reports whether e is one of types. An empty filter matches all.
func (e Event) Matches(types []EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if e.Type == t {
			return true
		}
	}
	return false
}
