package api

import (
	"context"
	"sync"

	"github.com/quells/managedmodel/internal/infrastructure/config"
	"github.com/quells/managedmodel/internal/infrastructure/logging"
	"github.com/quells/managedmodel/internal/model"
)

// Hub fans change events out to WebSocket clients.
//
// It implements controller.Publisher. Sends never block: a client whose
// buffer is full misses the event.
//
// Every send happens under the hub's read lock and only to a client still
// in the map; send channels are closed under the write lock. A client
// therefore never receives on a closed channel.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub returns a hub with no clients. Call Run to tie it to a lifetime.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds c to the hub.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes c and closes its send channel. Calling it for a
// client Run already dropped is a no-op.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishChange sends ev to subscribers of the table's channel and of
// ChannelAllEntities.
func (h *Hub) PublishChange(ctx context.Context, ev model.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.Broadcast(EntityChannel(ev.Table), ev)
	return nil
}

// Broadcast sends payload as an event on channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeMessage(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	var sent, dropped int
	h.mu.RLock()
	for c := range h.clients {
		if !c.wants(channel) {
			continue
		}
		if enqueue(c, data) {
			sent++
		} else {
			dropped++
		}
	}
	h.mu.RUnlock()

	if sent+dropped > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "recipients", sent, "dropped", dropped)
	}
}

// deliver queues data for one client, unless it has left the hub.
func (h *Hub) deliver(c *WSClient, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	return enqueue(c, data)
}

// enqueue must run under h.mu.
func enqueue(c *WSClient, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}
