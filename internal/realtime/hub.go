// Package realtime pushes domain events to browsers over WebSockets so a
// family member's screen refreshes when someone else records a transaction.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/family-finance/internal/events"
)

// Hub tracks connected clients by user and delivers each event only to the
// clients of users in its audience.
//
// AUDIENCE ROUTING:
// A user may have several tabs open, so the hub keeps clients, not users.
// Publish builds a set from e.Audience and walks every client once under the
// read lock; clients of users outside the set never see the event. Events
// carry ids, not rows, so a client that misses one only shows stale data
// until its next fetch.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

var _ events.Publisher = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish queues e for every connected client whose user is in e.Audience.
// A client with a full buffer misses the event rather than blocking the
// writer that produced it.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	if len(e.Audience) == 0 {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("realtime: encoding event: %w", err)
	}

	audience := make(map[string]struct{}, len(e.Audience))
	for _, id := range e.Audience {
		audience[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if _, ok := audience[c.userID]; !ok {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("realtime: client buffer full, dropping event",
				slog.String("userID", c.userID),
				slog.String("type", e.Type),
			)
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
