package httpledger

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"ridesync/internal/ledger"
)

const streamBuffer = 64

// Subscribe opens the gateway's /events websocket. The channel closes when
// ctx is done or the connection drops; callers fall back to polling either
// way.
func (c *Client) Subscribe(ctx context.Context, types ...ledger.EventType) (<-chan ledger.Event, error) {
	endpoint, err := c.streamURL(types)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to event stream: %w", err)
	}
	c.log.WithField("url", endpoint).Debug("event stream connected")

	out := make(chan ledger.Event, streamBuffer)

	// Closing the connection unblocks ReadJSON below.
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	go func() {
		defer close(out)
		defer close(stop)
		for {
			var e ledger.Event
			if err := conn.ReadJSON(&e); err != nil {
				if ctx.Err() == nil {
					c.log.WithError(err).Warn("event stream closed")
				}
				return
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (c *Client) streamURL(types []ledger.EventType) (string, error) {
	u, err := url.Parse(c.baseURL + "/events")
	if err != nil {
		return "", fmt.Errorf("parsing gateway url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		q := u.Query()
		q.Set("types", strings.Join(names, ","))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
