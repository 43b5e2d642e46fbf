package entities

import "strings"

// Role is the side of the ride an account is acting on.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// Action is something an actor can ask the ledger to do to a ride.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionDecline  Action = "decline"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionRate     Action = "rate"
)

// actionRules is the client-side mirror of the ledger's preconditions. The
// ledger remains authoritative; this table only decides what to offer.
var actionRules = map[Action]struct {
	role   Role
	from   RideStatus
	target RideStatus
}{
	ActionAccept:   {RoleDriver, RideStatusRequested, RideStatusAccepted},
	ActionDecline:  {RoleDriver, RideStatusRequested, RideStatusDeclined},
	ActionStart:    {RoleDriver, RideStatusAccepted, RideStatusStarted},
	ActionComplete: {RoleDriver, RideStatusStarted, RideStatusCompleted},
	ActionRate:     {RoleRider, RideStatusCompleted, RideStatusCompleted},
}

// Target returns the status the action moves a ride to. Rating does not move
// the ride, so its target equals its precondition.
func (a Action) Target() (RideStatus, bool) {
	rule, ok := actionRules[a]
	return rule.target, ok
}

// CanPerform reports whether actor, acting as role, may submit action for
// ride right now. Driver-side registration and availability are not visible
// on the ride and are checked by the caller.
func CanPerform(ride *Ride, role Role, actor string, action Action) bool {
	rule, ok := actionRules[action]
	if !ok || ride == nil || rule.role != role || ride.Status != rule.from {
		return false
	}

	switch action {
	case ActionAccept, ActionDecline:
		return !strings.EqualFold(ride.Rider, actor)
	case ActionStart, ActionComplete:
		return strings.EqualFold(ride.Driver, actor)
	case ActionRate:
		return strings.EqualFold(ride.Rider, actor) && ride.Rating == 0
	}
	return false
}

// AllowedActions lists every action CanPerform would accept, in lifecycle
// order.
func AllowedActions(ride *Ride, role Role, actor string) []Action {
	var allowed []Action
	for _, a := range []Action{ActionAccept, ActionDecline, ActionStart, ActionComplete, ActionRate} {
		if CanPerform(ride, role, actor, a) {
			allowed = append(allowed, a)
		}
	}
	return allowed
}
