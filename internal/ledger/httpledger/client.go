// Package httpledger is a ledger.Client that talks to a ledger node's HTTP
// gateway. Transactions are approved by the local wallet before they leave
// the process; the gateway only learns the sender from the Authorization
// header.
package httpledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/api/handlers"
	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// Client is bound to one wallet. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	wallet  ledger.Wallet
	log     logrus.FieldLogger
}

var (
	_ ledger.Client     = (*Client)(nil)
	_ ledger.Subscriber = (*Client)(nil)
)

// New returns a client for the gateway at baseURL. A nil httpClient gets a
// default one; its timeout should exceed the node's block time since
// submissions block until mined.
func New(baseURL string, wallet ledger.Wallet, httpClient *http.Client, log logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		wallet:  wallet,
		log:     logger.Component(log, "httpledger"),
	}
}

func (c *Client) Account() string {
	return c.wallet.Address
}

// --- reads ---

func (c *Client) ReadRide(ctx context.Context, id entities.RideID) (*entities.Ride, error) {
	var ride entities.Ride
	if err := c.read(ctx, fmt.Sprintf("/rides/%d", id), &ride); err != nil {
		return nil, err
	}
	return &ride, nil
}

func (c *Client) ReadActiveRequests(ctx context.Context) ([]*entities.Ride, error) {
	var rides []*entities.Ride
	if err := c.read(ctx, "/rides", &rides); err != nil {
		return nil, err
	}
	return rides, nil
}

func (c *Client) ReadDriver(ctx context.Context, address string) (*entities.Driver, error) {
	var driver entities.Driver
	if err := c.read(ctx, "/drivers/"+url.PathEscape(address), &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

func (c *Client) ReadAccountRides(ctx context.Context, address string) ([]entities.RideID, error) {
	var resp handlers.AccountRidesResponse
	if err := c.read(ctx, "/accounts/"+url.PathEscape(address)+"/rides", &resp); err != nil {
		return nil, err
	}
	return resp.Rides, nil
}

// read issues a GET. Transport failures and timeouts are transient.
func (c *Client) read(ctx context.Context, path string, out interface{}) error {
	err := c.do(ctx, http.MethodGet, path, nil, out)
	var nerr *networkError
	if errors.As(err, &nerr) {
		return ledger.Transient(nerr.err)
	}
	return err
}

// --- writes ---

func (c *Client) SubmitRideRequest(ctx context.Context, origin, destination string, fare entities.Amount) (*ledger.Receipt, error) {
	body := handlers.RequestRideRequest{Origin: origin, Destination: destination, Fare: fare}
	return c.submit(ctx, "requestRide", 0, fare, http.MethodPost, "/rides", body)
}

func (c *Client) SubmitAccept(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	return c.submit(ctx, "acceptRide", id, 0, http.MethodPost, fmt.Sprintf("/rides/%d/accept", id), nil)
}

func (c *Client) SubmitDecline(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	return c.submit(ctx, "declineRide", id, 0, http.MethodPost, fmt.Sprintf("/rides/%d/decline", id), nil)
}

func (c *Client) SubmitStart(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	return c.submit(ctx, "startRide", id, 0, http.MethodPost, fmt.Sprintf("/rides/%d/start", id), nil)
}

func (c *Client) SubmitComplete(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	return c.submit(ctx, "completeRide", id, 0, http.MethodPost, fmt.Sprintf("/rides/%d/complete", id), nil)
}

func (c *Client) SubmitRating(ctx context.Context, id entities.RideID, rating uint8) (*ledger.Receipt, error) {
	body := handlers.RateDriverRequest{Rating: rating}
	return c.submit(ctx, "rateDriver", id, 0, http.MethodPost, fmt.Sprintf("/rides/%d/rating", id), body)
}

func (c *Client) SubmitRegistration(ctx context.Context, name, vehicleInfo, licenseNumber string) (*ledger.Receipt, error) {
	body := handlers.RegisterDriverRequest{Name: name, VehicleInfo: vehicleInfo, LicenseNumber: licenseNumber}
	return c.submit(ctx, "registerDriver", 0, 0, http.MethodPost, "/drivers", body)
}

func (c *Client) SubmitAvailability(ctx context.Context, available bool) (*ledger.Receipt, error) {
	body := handlers.AvailabilityRequest{Available: &available}
	return c.submit(ctx, "setDriverAvailability", 0, 0, http.MethodPatch, "/drivers/availability", body)
}

func (c *Client) SubmitLocation(ctx context.Context, loc entities.Location) (*ledger.Receipt, error) {
	lat, lng := loc.Latitude, loc.Longitude
	body := handlers.LocationRequest{Lat: &lat, Lng: &lng}
	return c.submit(ctx, "updateDriverLocation", 0, 0, http.MethodPatch, "/drivers/location", body)
}

// submit signs locally and then sends. A refused signature never produces a
// request.
func (c *Client) submit(ctx context.Context, method string, id entities.RideID, value entities.Amount, verb, path string, body interface{}) (*ledger.Receipt, error) {
	if err := c.wallet.Sign(ctx, method, id, value); err != nil {
		return nil, err
	}

	var receipt ledger.Receipt
	if err := c.do(ctx, verb, path, body, &receipt); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	c.log.WithFields(logrus.Fields{
		"method": method,
		"tx":     receipt.TxHash,
		"block":  receipt.BlockNumber,
	}).Debug("transaction mined")
	return &receipt, nil
}

// networkError marks failures where no HTTP response was read.
type networkError struct {
	err error
}

func (e *networkError) Error() string { return e.err.Error() }
func (e *networkError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, verb, path string, body, out interface{}) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, verb, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if verb != http.MethodGet {
		req.Header.Set("Authorization", "Bearer "+c.wallet.Address)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &networkError{err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &networkError{err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeError reverses the gateway's status mapping.
func decodeError(status int, data []byte) error {
	var body handlers.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(status)
	}

	switch {
	case status == http.StatusConflict:
		reason := body.Reason
		if reason == "" {
			reason = body.Error
		}
		return ledger.Revert(reason)
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", body.Error, ledger.ErrNotFound)
	case status >= 500:
		return ledger.Transient(fmt.Errorf("gateway returned %d: %s", status, body.Error))
	default:
		return fmt.Errorf("gateway returned %d: %s", status, body.Error)
	}
}
