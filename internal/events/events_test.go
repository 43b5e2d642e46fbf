package events

import (
	"errors"
	"testing"
	"time"

	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
)

func TestEncodeDecode(t *testing.T) {
	status := entities.RideStatusAccepted
	e := ledger.Event{
		Type:        ledger.EventRideAccepted,
		RideID:      7,
		Account:     "0x2222222222222222222222222222222222222222",
		Status:      &status,
		BlockNumber: 12,
		TxHash:      "0xabc",
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.Type != e.Type || got.RideID != e.RideID || got.BlockNumber != e.BlockNumber {
		t.Errorf("Expected %+v, got %+v", e, got)
	}
	if got.Status == nil || *got.Status != status {
		t.Errorf("Expected status %s, got %v", status, got.Status)
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		untyped bool
	}{
		{"not json", "hello", false},
		{"missing type", `{"ride_id":1}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if err == nil {
				t.Fatal("Expected error")
			}
			if errors.Is(err, ErrEmptyEventType) != tt.untyped {
				t.Errorf("Unexpected error kind: %v", err)
			}
		})
	}
}

func TestEncode_RequiresType(t *testing.T) {
	if _, err := Encode(ledger.Event{RideID: 1}); !errors.Is(err, ErrEmptyEventType) {
		t.Errorf("Expected ErrEmptyEventType, got %v", err)
	}
}
