package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransactionRejected means the signer declined. Nothing reached the
	// ledger and the user may try again.
	ErrTransactionRejected = errors.New("transaction rejected by signer")
	// ErrTransactionReverted means the ledger refused the transaction because
	// a precondition failed.
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrNotFound            = errors.New("not found on ledger")
	// ErrTransientRead covers network failures and timeouts on reads. Reads
	// are retried on the next scheduled tick.
	ErrTransientRead = errors.New("transient ledger read failure")
)

// Revert builds an ErrTransactionReverted carrying the ledger's reason.
func Revert(reason string) error {
	return fmt.Errorf("%w: %s", ErrTransactionReverted, reason)
}

// Transient wraps err as ErrTransientRead while keeping the cause visible.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransientRead) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransientRead, err)
}

// RevertReason extracts the reason passed to Revert, or "" when err is not a
// revert.
func RevertReason(err error) string {
	if !errors.Is(err, ErrTransactionReverted) {
		return ""
	}
	msg := err.Error()
	prefix := ErrTransactionReverted.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
