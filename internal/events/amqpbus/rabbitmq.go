// Package amqpbus relays ledger events through a RabbitMQ topic exchange.
// Routing keys are "ride.event.<EventType>"; each subscription gets its own
// exclusive, auto-deleted queue.
package amqpbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
	"ridesync/internal/events"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
)

const (
	routingPrefix    = "ride.event."
	subscriberBuffer = 64
)

var ErrClosed = errors.New("amqp connection is closed")

type Bus struct {
	exchange string
	log      logrus.FieldLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ events.Relay = (*Bus)(nil)

// Dial connects, opens a publishing channel, and declares the exchange.
func Dial(cfg config.AMQPConfig, log logrus.FieldLogger) (*Bus, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", cfg.Exchange, err)
	}

	return &Bus{
		exchange: cfg.Exchange,
		log:      logger.Component(log, "amqpbus"),
		conn:     conn,
		ch:       ch,
	}, nil
}

// RoutingKey returns the key an event type is published under. The empty
// type binds to every event.
func RoutingKey(t ledger.EventType) string {
	if t == "" {
		return routingPrefix + "#"
	}
	return routingPrefix + string(t)
}

func toPublishing(e ledger.Event) (amqp.Publishing, error) {
	body, err := events.Encode(e)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType: "application/json",
		MessageId:   e.TxHash,
		Timestamp:   e.Timestamp,
		Type:        string(e.Type),
		Body:        body,
	}, nil
}

func (b *Bus) Publish(ctx context.Context, e ledger.Event) error {
	msg, err := toPublishing(e)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil || b.conn.IsClosed() {
		return ErrClosed
	}
	if err := b.ch.PublishWithContext(ctx, b.exchange, RoutingKey(e.Type), false, false, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe binds a fresh queue to the requested types. The queue and its
// channel go away when ctx is done.
func (b *Bus) Subscribe(ctx context.Context, types ...ledger.EventType) (<-chan ledger.Event, error) {
	b.mu.Lock()
	if b.conn == nil || b.conn.IsClosed() {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	ch, err := b.conn.Channel()
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	deliveries, err := b.bind(ctx, ch, types)
	if err != nil {
		ch.Close()
		return nil, err
	}

	out := make(chan ledger.Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				e, err := events.Decode(d.Body)
				if err != nil {
					b.log.WithError(err).WithField("routing_key", d.RoutingKey).Warn("dropping malformed event")
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *Bus) bind(ctx context.Context, ch *amqp.Channel, types []ledger.EventType) (<-chan amqp.Delivery, error) {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declaring queue: %w", err)
	}

	keys := []string{RoutingKey("")}
	if len(types) > 0 {
		keys = keys[:0]
		for _, t := range types {
			keys = append(keys, RoutingKey(t))
		}
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, b.exchange, false, nil); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consuming %s: %w", q.Name, err)
	}
	return deliveries, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	if err := b.ch.Close(); err != nil {
		b.log.WithError(err).Debug("closing channel")
	}
	return b.conn.Close()
}
