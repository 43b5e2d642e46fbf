// Package events holds what the broker relays share: the wire encoding of a
// ledger event and the Relay contract. Brokers only carry hints; receivers
// re-read the ledger before acting on anything they hear.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"ridesync/internal/ledger"
)

// Relay forwards events to a broker and lets clients subscribe to them.
type Relay interface {
	ledger.Publisher
	ledger.Subscriber
	io.Closer
}

var ErrEmptyEventType = errors.New("event has no type")

func Encode(e ledger.Event) ([]byte, error) {
	if e.Type == "" {
		return nil, ErrEmptyEventType
	}
	return json.Marshal(e)
}

func Decode(data []byte) (ledger.Event, error) {
	var e ledger.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return ledger.Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if e.Type == "" {
		return ledger.Event{}, ErrEmptyEventType
	}
	return e, nil
}
