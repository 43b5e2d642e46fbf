package services

import (
	"testing"

	"ridesync/internal/domain/entities"
	"ridesync/pkg/logger"
)

func TestNotificationService_ForwardsToHandlers(t *testing.T) {
	svc := NewNotificationService(logger.Discard())
	first, second := &recordingNotifier{}, &recordingNotifier{}
	svc.AddHandler(first)
	svc.AddHandler(second)

	svc.Notify(SeveritySuccess, "Ride 1 accepted")
	svc.Notify(SeverityError, "Ride 2 was declined")

	for i, n := range []*recordingNotifier{first, second} {
		if len(n.items) != 2 {
			t.Fatalf("handler %d: expected 2 notifications, got %d", i, len(n.items))
		}
		if n.count(SeverityError) != 1 {
			t.Errorf("handler %d: expected 1 error notification, got %d", i, n.count(SeverityError))
		}
	}
}

func TestStatusMessage(t *testing.T) {
	ride := &entities.Ride{
		ID:     7,
		Driver: "0x1234567890abcdef1234567890abcdef12345678",
		Fare:   entities.Amount(10_000_000_000_000_000),
	}

	tests := []struct {
		status   entities.RideStatus
		severity Severity
		message  string
	}{
		{entities.RideStatusRequested, SeverityInfo, "Ride 7 requested, waiting for a driver"},
		{entities.RideStatusAccepted, SeveritySuccess, "Ride 7 accepted by driver 0x1234...5678"},
		{entities.RideStatusStarted, SeverityInfo, "Ride 7 has started"},
		{entities.RideStatusCompleted, SeveritySuccess, "Ride 7 completed. Fare: 0.01 ETH"},
		{entities.RideStatusDeclined, SeverityError, "Ride 7 was declined"},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			severity, message := statusMessage(ride, tt.status)
			if severity != tt.severity {
				t.Errorf("Expected severity %s, got %s", tt.severity, severity)
			}
			if message != tt.message {
				t.Errorf("Expected %q, got %q", tt.message, message)
			}
		})
	}
}
