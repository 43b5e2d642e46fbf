// Package broker opens the event relay selected in configuration.
package broker

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
	"ridesync/internal/events"
	"ridesync/internal/events/amqpbus"
	"ridesync/internal/events/redisbus"
)

// Open returns the configured relay, or nil when the backend is "none".
func Open(cfg config.EventsConfig, log logrus.FieldLogger) (events.Relay, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "redis":
		bus, err := redisbus.New(cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		return bus, nil
	case "amqp":
		bus, err := amqpbus.Dial(cfg.AMQP, log)
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
