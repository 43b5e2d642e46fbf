package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
)

const (
	// pendingTTL bounds how long an abandoned submission blocks a retry of
	// the same ride action.
	pendingTTL = 2 * time.Minute
	guardSweep = 30 * time.Second
)

// actor is what the rider and driver sessions share: a ledger client acting
// in one role, with a pre-submission check against the ride's current state.
type actor struct {
	client   ledger.Client
	role     entities.Role
	cfg      config.SyncConfig
	guard    *SubmissionGuard
	notifier Notifier
	log      logrus.FieldLogger
}

func newActor(client ledger.Client, role entities.Role, cfg config.SyncConfig, notifier Notifier, log logrus.FieldLogger) actor {
	if notifier == nil {
		notifier = nopNotifier()
	}
	return actor{
		client:   client,
		role:     role,
		cfg:      cfg,
		guard:    NewSubmissionGuard(guardSweep),
		notifier: notifier,
		log:      log.WithFields(logrus.Fields{"role": role, "account": client.Account()}),
	}
}

// readRide re-reads a ride with the configured read timeout.
func (a *actor) readRide(ctx context.Context, id entities.RideID) (*entities.Ride, error) {
	readCtx, cancel := context.WithTimeout(ctx, a.cfg.ReadTimeout)
	defer cancel()
	return a.client.ReadRide(readCtx, id)
}

// check re-reads the ride and refuses the action when the current ledger
// state does not allow it. Nothing is signed for a terminal ride.
func (a *actor) check(ctx context.Context, id entities.RideID, action entities.Action) (*entities.Ride, error) {
	ride, err := a.readRide(ctx, id)
	if err != nil {
		return nil, err
	}
	if ride.IsTerminal() && action != entities.ActionRate {
		return nil, fmt.Errorf("%w: ride %d is %s", ErrActionNotAllowed, id, ride.Status)
	}
	if !entities.CanPerform(ride, a.role, a.client.Account(), action) {
		return nil, fmt.Errorf("%w: cannot %s ride %d while %s", ErrActionNotAllowed, action, id, ride.Status)
	}
	return ride, nil
}

// perform checks, signs, and submits one ride action. A submission is never
// retried here. If the caller stops waiting before the receipt arrives, the
// ride stays locked for pendingTTL because the transaction may still land.
func (a *actor) perform(ctx context.Context, id entities.RideID, action entities.Action, submit func(context.Context, entities.RideID) (*ledger.Receipt, error)) (*ledger.Receipt, error) {
	key := fmt.Sprintf("ride:%d", id)
	if !a.guard.Acquire(key, pendingTTL) {
		return nil, ErrSubmissionBusy
	}

	if _, err := a.check(ctx, id, action); err != nil {
		a.guard.Release(key)
		return nil, err
	}

	receipt, err := submit(ctx, id)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		a.log.WithField("ride_id", id).Warn("stopped waiting for receipt, transaction may still be mined")
		a.notifier.Notify(SeverityInfo, fmt.Sprintf("Waiting for ride %d to %s to be confirmed", id, action))
		return nil, err
	}
	a.guard.Release(key)

	if err != nil {
		a.reportFailure(action, err)
		return nil, err
	}

	a.log.WithFields(logrus.Fields{"ride_id": id, "action": action, "tx": receipt.TxHash}).Info("transaction confirmed")
	return receipt, nil
}

// reportFailure turns a submission error into a notification.
func (a *actor) reportFailure(what interface{}, err error) {
	entry := a.log.WithError(err).WithField("action", what)
	switch {
	case errors.Is(err, ledger.ErrTransactionRejected):
		entry.Info("transaction not signed")
		a.notifier.Notify(SeverityInfo, "Transaction cancelled")
	case errors.Is(err, ledger.ErrTransactionReverted):
		entry.Warn("transaction reverted")
		a.notifier.Notify(SeverityError, fmt.Sprintf("Transaction failed: %s", ledger.RevertReason(err)))
	default:
		entry.Error("transaction failed")
		a.notifier.Notify(SeverityError, fmt.Sprintf("Transaction failed: %v", err))
	}
}

func (a *actor) close() {
	a.guard.Stop()
}
