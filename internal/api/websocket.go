package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quells/managedmodel/internal/infrastructure/config"
)

// Message types on the change stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	entityChannelPrefix = "entity."

	// ChannelAllEntities receives changes to every table.
	ChannelAllEntities = entityChannelPrefix + "*"

	wsSendBufferSize = 256
)

// EntityChannel returns the channel carrying changes to one table.
func EntityChannel(table string) string {
	return entityChannelPrefix + table
}

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// encodeMessage stamps msg with the current time and marshals it.
func encodeMessage(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}

// WSClient is one connection on the change stream.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}
}

// The API binds to localhost by default and carries no credentials, so
// any origin may connect.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestID(r.Context()))
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(c)

	t := newWSTimings(s.hub.cfg)
	go c.writeLoop(t)
	go c.readLoop(t, int64(s.hub.cfg.MaxMessageSize))
}

// wsTimings holds the keepalive intervals derived from configuration.
type wsTimings struct {
	ping     time.Duration // between server pings
	readWait time.Duration // silence tolerated before the peer is dead
	write    time.Duration // per-frame write deadline
}

func newWSTimings(cfg config.WebSocketConfig) wsTimings {
	pong := time.Duration(cfg.PongTimeout) * time.Second
	ping := time.Duration(cfg.PingInterval) * time.Second
	return wsTimings{ping: ping, readWait: ping + pong, write: pong}
}

// readLoop handles client frames until the connection fails, then leaves
// the hub, which stops writeLoop.
func (c *WSClient) readLoop(t wsTimings, limit int64) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.readWait)) }
	c.conn.SetReadLimit(limit)
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		if err := extend(); err != nil {
			return
		}
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		c.handleFrame(frame)
	}
}

// writeLoop drains send and pings the peer. It sends a close frame and
// exits once send is closed.
func (c *WSClient) writeLoop(t wsTimings) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(t.write)); err != nil {
			return err
		}
		return c.conn.WriteMessage(kind, data)
	}

	for {
		var err error
		select {
		case data, open := <-c.send:
			if !open {
				write(websocket.CloseMessage, nil) //nolint:errcheck // peer may be gone
				return
			}
			err = write(websocket.TextMessage, data)
		case <-ticker.C:
			err = write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

var errBadPayload = errors.New("payload must be {\"channels\": [...]}")

func (c *WSClient) handleFrame(frame []byte) {
	var msg struct {
		Type    string          `json:"type"`
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.reply(WSTypeError, "", map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(WSTypePong, msg.ID, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		channels, err := decodeChannels(msg.Payload)
		if err != nil {
			c.reply(WSTypeError, msg.ID, map[string]string{"message": msg.Type + ": " + err.Error()})
			return
		}
		key := c.updateSubscriptions(msg.Type == WSTypeSubscribe, channels)
		c.reply(WSTypeResponse, msg.ID, map[string][]string{key: channels})
	default:
		c.reply(WSTypeError, msg.ID, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func decodeChannels(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, errBadPayload
	}
	var p WSSubscribePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errBadPayload
	}
	return p.Channels, nil
}

// updateSubscriptions adds or removes channels and returns the response
// key naming what happened.
func (c *WSClient) updateSubscriptions(add bool, channels []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	if add {
		return "subscribed"
	}
	return "unsubscribed"
}

// wants reports whether the client follows channel, directly or through
// ChannelAllEntities.
func (c *WSClient) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.subscriptions[channel]; ok {
		return true
	}
	_, all := c.subscriptions[ChannelAllEntities]
	return all && strings.HasPrefix(channel, entityChannelPrefix)
}

func (c *WSClient) reply(msgType, id string, payload any) {
	data, err := encodeMessage(WSMessage{Type: msgType, ID: id, Payload: payload})
	if err != nil {
		return
	}
	c.hub.deliver(c, data)
}
