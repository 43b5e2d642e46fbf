package services

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"ridesync/internal/domain/entities"
	"ridesync/pkg/logger"
	"ridesync/pkg/utils"
)

// Severity classifies a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notification is a transient message for the person using the client.
type Notification struct {
	Severity Severity
	Message  string
}

// Notifier is the fire-and-forget notification surface. Implementations must
// not block.
type Notifier interface {
	Notify(severity Severity, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(severity Severity, message string)

func (f NotifierFunc) Notify(severity Severity, message string) {
	f(severity, message)
}

// NotificationService logs every notification and forwards it to the
// registered handlers, such as a UI toast or a websocket push.
type NotificationService struct {
	log logrus.FieldLogger

	mu       sync.RWMutex
	handlers []Notifier
}

func NewNotificationService(log logrus.FieldLogger) *NotificationService {
	return &NotificationService{log: logger.Component(log, "notifications")}
}

// AddHandler registers h for every future notification.
func (s *NotificationService) AddHandler(h Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *NotificationService) Notify(severity Severity, message string) {
	entry := s.log.WithField("severity", severity)
	if severity == SeverityError {
		entry.Warn(message)
	} else {
		entry.Info(message)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.handlers {
		h.Notify(severity, message)
	}
}

// Messages shown for ride status changes, keyed by the status entered.
func statusMessage(ride *entities.Ride, status entities.RideStatus) (Severity, string) {
	switch status {
	case entities.RideStatusRequested:
		return SeverityInfo, fmt.Sprintf("Ride %d requested, waiting for a driver", ride.ID)
	case entities.RideStatusAccepted:
		return SeveritySuccess, fmt.Sprintf("Ride %d accepted by driver %s", ride.ID, utils.ShortAddress(ride.Driver))
	case entities.RideStatusStarted:
		return SeverityInfo, fmt.Sprintf("Ride %d has started", ride.ID)
	case entities.RideStatusCompleted:
		return SeveritySuccess, fmt.Sprintf("Ride %d completed. Fare: %s ETH", ride.ID, utils.FormatEther(uint64(ride.Fare)))
	case entities.RideStatusDeclined:
		return SeverityError, fmt.Sprintf("Ride %d was declined", ride.ID)
	}
	return SeverityInfo, fmt.Sprintf("Ride %d is %s", ride.ID, status)
}

func nopNotifier() Notifier {
	return NotifierFunc(func(Severity, string) {})
}
