package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
)

// EventHandler streams ledger events over a websocket, one JSON Event per
// text message.
type EventHandler struct {
	events   ledger.Subscriber
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewEventHandler(events ledger.Subscriber, log logrus.FieldLogger) *EventHandler {
	return &EventHandler{
		events: events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Component(log, "event_stream"),
	}
}

// ParseEventTypes reads a comma separated ?types= filter. Empty means all.
func ParseEventTypes(raw string) []ledger.EventType {
	var types []ledger.EventType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, ledger.EventType(part))
		}
	}
	return types
}

// Stream handles GET /events?types=RideRequested,RideAccepted
func (h *EventHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := h.events.Subscribe(ctx, ParseEventTypes(c.Query("types"))...)
	if err != nil {
		h.log.WithError(err).Error("subscribe failed")
		return
	}

	// The read loop only exists to notice the client going away and to
	// process pongs.
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	h.log.WithField("remote", c.ClientIP()).Debug("event stream opened")
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				h.log.WithError(err).Debug("event stream closed")
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
