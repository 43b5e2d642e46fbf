package ledger

import (
	"context"
	"fmt"

	"ridesync/internal/domain/entities"
)

// Transaction describes what a wallet is asked to sign.
type Transaction struct {
	From   string
	Method string
	RideID entities.RideID
	Value  entities.Amount
}

// Approver decides whether a transaction gets signed. A non-nil error means
// the user declined.
type Approver interface {
	Approve(ctx context.Context, tx Transaction) error
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, tx Transaction) error

func (f ApproverFunc) Approve(ctx context.Context, tx Transaction) error {
	return f(ctx, tx)
}

// AutoApprove signs everything.
var AutoApprove Approver = ApproverFunc(func(context.Context, Transaction) error { return nil })

// Wallet is the signing identity behind a Client.
type Wallet struct {
	Address  string
	Approver Approver
}

func NewWallet(address string, approver Approver) Wallet {
	if approver == nil {
		approver = AutoApprove
	}
	return Wallet{Address: address, Approver: approver}
}

// Sign asks the approver to authorize tx. Any refusal surfaces as
// ErrTransactionRejected so callers can match on one sentinel.
func (w Wallet) Sign(ctx context.Context, method string, rideID entities.RideID, value entities.Amount) error {
	approver := w.Approver
	if approver == nil {
		approver = AutoApprove
	}
	tx := Transaction{From: w.Address, Method: method, RideID: rideID, Value: value}
	if err := approver.Approve(ctx, tx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransactionRejected, method, err)
	}
	return nil
}
