// Package redisbus relays ledger events over Redis pub/sub, one channel per
// event type.
package redisbus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
	"ridesync/internal/events"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
)

const subscriberBuffer = 64

type Bus struct {
	client *redis.Client
	prefix string
	log    logrus.FieldLogger
}

var _ events.Relay = (*Bus)(nil)

// New connects and pings before returning.
func New(cfg config.RedisConfig, log logrus.FieldLogger) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewWithClient(rdb, cfg.ChannelPrefix, log), nil
}

func NewWithClient(client *redis.Client, prefix string, log logrus.FieldLogger) *Bus {
	return &Bus{
		client: client,
		prefix: prefix,
		log:    logger.Component(log, "redisbus"),
	}
}

// Channel names the pub/sub channel for one event type.
func Channel(prefix string, t ledger.EventType) string {
	return prefix + ":" + string(t)
}

func (b *Bus) Publish(ctx context.Context, e ledger.Event) error {
	payload, err := events.Encode(e)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, Channel(b.prefix, e.Type), payload).Err(); err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe listens on the channels for types, or on every event channel
// when types is empty.
func (b *Bus) Subscribe(ctx context.Context, types ...ledger.EventType) (<-chan ledger.Event, error) {
	var pubsub *redis.PubSub
	if len(types) == 0 {
		pubsub = b.client.PSubscribe(ctx, Channel(b.prefix, "*"))
	} else {
		channels := make([]string, len(types))
		for i, t := range types {
			channels[i] = Channel(b.prefix, t)
		}
		pubsub = b.client.Subscribe(ctx, channels...)
	}

	// Receive blocks until the subscription is confirmed, so a bad
	// connection fails here rather than silently later.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribing: %w", err)
	}

	out := make(chan ledger.Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				e, err := events.Decode([]byte(msg.Payload))
				if err != nil {
					b.log.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed event")
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

func (b *Bus) Close() error {
	return b.client.Close()
}
