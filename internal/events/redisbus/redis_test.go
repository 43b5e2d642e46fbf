package redisbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"ridesync/internal/config"
	"ridesync/internal/events"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
)

// unreachable points at a port nothing listens on.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestChannel(t *testing.T) {
	tests := []struct {
		prefix string
		typ    ledger.EventType
		want   string
	}{
		{"ridesync:events", ledger.EventRideRequested, "ridesync:events:RideRequested"},
		{"ridesync:events", "*", "ridesync:events:*"},
		{"x", ledger.EventDriverRegistered, "x:DriverRegistered"},
	}

	for _, tt := range tests {
		if got := Channel(tt.prefix, tt.typ); got != tt.want {
			t.Errorf("Channel(%q, %q) = %q, expected %q", tt.prefix, tt.typ, got, tt.want)
		}
	}
}

func TestNew_Unreachable(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1, ChannelPrefix: "test"}
	if _, err := New(cfg, logger.Discard()); err == nil {
		t.Error("Expected connection error")
	}
}

func TestPublish_RejectsUntypedEvent(t *testing.T) {
	bus := NewWithClient(unreachable(), "test", logger.Discard())
	defer bus.Close()

	err := bus.Publish(context.Background(), ledger.Event{RideID: 1})
	if !errors.Is(err, events.ErrEmptyEventType) {
		t.Errorf("Expected ErrEmptyEventType, got %v", err)
	}
}

func TestPublish_ConnectionError(t *testing.T) {
	bus := NewWithClient(unreachable(), "test", logger.Discard())
	defer bus.Close()

	err := bus.Publish(context.Background(), ledger.Event{Type: ledger.EventRideRequested, RideID: 1})
	if err == nil {
		t.Error("Expected publish to fail without a server")
	}
}

func TestSubscribe_ConnectionError(t *testing.T) {
	bus := NewWithClient(unreachable(), "test", logger.Discard())
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := bus.Subscribe(ctx, ledger.EventRideRequested); err == nil {
		t.Error("Expected subscribe to fail without a server")
	}
}

// TestBus_RoundTrip needs a Redis server at the configured address and is
// skipped without one.
func TestBus_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping broker test in short mode")
	}
	cfg := config.NewDefaultConfig().Events.Redis
	cfg.ChannelPrefix = "ridesync:test:" + time.Now().Format("150405.000000")
	bus, err := New(cfg, logger.Discard())
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	received, err := bus.Subscribe(ctx, ledger.EventRideAccepted)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(ctx, ledger.Event{Type: ledger.EventRideRequested, RideID: 1}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(ctx, ledger.Event{Type: ledger.EventRideAccepted, RideID: 2, TxHash: "0xabc"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case e := <-received:
		if e.Type != ledger.EventRideAccepted || e.RideID != 2 || e.TxHash != "0xabc" {
			t.Errorf("Expected RideAccepted for ride 2, got %+v", e)
		}
	case <-ctx.Done():
		t.Fatal("Expected the published event to come back")
	}
}
