package chain

import (
	"context"

	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
)

// Account is a ledger.Client that talks to a Contract in the same process.
// Every submission is signed by the wallet before it reaches the contract.
type Account struct {
	contract *Contract
	wallet   ledger.Wallet
}

var _ ledger.Client = (*Account)(nil)

// Connect binds wallet to the contract.
func (c *Contract) Connect(wallet ledger.Wallet) *Account {
	return &Account{contract: c, wallet: wallet}
}

func (a *Account) Account() string {
	return a.wallet.Address
}

func (a *Account) ReadRide(ctx context.Context, id entities.RideID) (*entities.Ride, error) {
	return a.contract.GetRide(ctx, id)
}

func (a *Account) ReadActiveRequests(ctx context.Context) ([]*entities.Ride, error) {
	return a.contract.ActiveRequests(ctx)
}

func (a *Account) ReadDriver(ctx context.Context, address string) (*entities.Driver, error) {
	return a.contract.GetDriver(ctx, address)
}

func (a *Account) ReadAccountRides(ctx context.Context, address string) ([]entities.RideID, error) {
	return a.contract.AccountRides(ctx, address)
}

func (a *Account) SubmitRideRequest(ctx context.Context, origin, destination string, fare entities.Amount) (*ledger.Receipt, error) {
	if err := a.wallet.Sign(ctx, "requestRide", 0, fare); err != nil {
		return nil, err
	}
	return a.contract.RequestRide(ctx, a.wallet.Address, origin, destination, fare)
}

func (a *Account) SubmitAccept(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	if err := a.wallet.Sign(ctx, "acceptRide", id, 0); err != nil {
		return nil, err
	}
	return a.contract.AcceptRide(ctx, a.wallet.Address, id)
}

func (a *Account) SubmitDecline(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	if err := a.wallet.Sign(ctx, "declineRide", id, 0); err != nil {
		return nil, err
	}
	return a.contract.DeclineRide(ctx, a.wallet.Address, id)
}

func (a *Account) SubmitStart(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	if err := a.wallet.Sign(ctx, "startRide", id, 0); err != nil {
		return nil, err
	}
	return a.contract.StartRide(ctx, a.wallet.Address, id)
}

func (a *Account) SubmitComplete(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	if err := a.wallet.Sign(ctx, "completeRide", id, 0); err != nil {
		return nil, err
	}
	return a.contract.CompleteRide(ctx, a.wallet.Address, id)
}

func (a *Account) SubmitRating(ctx context.Context, id entities.RideID, rating uint8) (*ledger.Receipt, error) {
	if err := a.wallet.Sign(ctx, "rateDriver", id, 0); err != nil {
		return nil, err
	}
	return a.contract.RateDriver(ctx, a.wallet.Address, id, rating)
}

func (a *Account) SubmitRegistration(ctx context.Context, name, vehicleInfo, licenseNumber string) (*ledger.Receipt, error) {
	if err := a.wallet.Sign(ctx, "registerDriver", 0, 0); err != nil {
		return nil, err
	}
	return a.contract.RegisterDriver(ctx, a.wallet.Address, name, vehicleInfo, licenseNumber)
}

func (a *Account) SubmitAvailability(ctx context.Context, available bool) (*ledger.Receipt, error) {
	if err := a.wallet.Sign(ctx, "setDriverAvailability", 0, 0); err != nil {
		return nil, err
	}
	return a.contract.SetDriverAvailability(ctx, a.wallet.Address, available)
}

// SubmitLocation encodes loc as micro-degrees before it reaches the ledger.
func (a *Account) SubmitLocation(ctx context.Context, loc entities.Location) (*ledger.Receipt, error) {
	if err := a.wallet.Sign(ctx, "updateDriverLocation", 0, 0); err != nil {
		return nil, err
	}
	lat, lng := loc.Micro()
	return a.contract.UpdateDriverLocation(ctx, a.wallet.Address, lat, lng)
}
