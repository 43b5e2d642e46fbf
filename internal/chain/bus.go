package chain

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
)

const subscriberBuffer = 64

type subscription struct {
	types []ledger.EventType
	ch    chan ledger.Event
}

// EventBus fans ledger events out to in-process subscribers and to external
// relays.
//
// Go Learning Note — Non-Blocking Send:
// Publish uses `select { case ch <- e: default: }` so a slow subscriber can
// never stall block production. A dropped event is harmless: subscribers
// treat events as hints and keep polling.
type EventBus struct {
	log logrus.FieldLogger

	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
	relays []ledger.Publisher
}

var (
	_ ledger.Subscriber = (*EventBus)(nil)
	_ ledger.Publisher  = (*EventBus)(nil)
)

func NewEventBus(log logrus.FieldLogger) *EventBus {
	return &EventBus{
		log:  logger.Component(log, "event_bus"),
		subs: make(map[int]*subscription),
	}
}

// AddRelay forwards every future event to p as well.
func (b *EventBus) AddRelay(p ledger.Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relays = append(b.relays, p)
}

// Subscribe registers a subscriber until ctx is done. The channel is closed
// on unsubscribe.
func (b *EventBus) Subscribe(ctx context.Context, types ...ledger.EventType) (<-chan ledger.Event, error) {
	sub := &subscription{
		types: append([]ledger.EventType(nil), types...),
		ch:    make(chan ledger.Event, subscriberBuffer),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch, nil
}

// Publish delivers e to matching subscribers without blocking, then to each
// relay. Relay failures are logged and never fail the transaction that
// produced the event.
func (b *EventBus) Publish(ctx context.Context, e ledger.Event) error {
	b.mu.RLock()
	for _, sub := range b.subs {
		if !e.Matches(sub.types) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.log.WithField("event", e.Type).Warn("subscriber buffer full, dropping event")
		}
	}
	relays := append([]ledger.Publisher(nil), b.relays...)
	b.mu.RUnlock()

	for _, r := range relays {
		if err := r.Publish(ctx, e); err != nil {
			b.log.WithError(err).WithField("event", e.Type).Warn("relay publish failed")
		}
	}
	return nil
}

// Subscribers reports the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
