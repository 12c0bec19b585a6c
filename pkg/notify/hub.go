/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/connectbridge/pkg/logger"
	"github.com/carverauto/connectbridge/pkg/models"
)

const (
	MessageStatus = "status"
	MessagePing   = "ping"

	clientBuffer   = 8
	writeTimeout   = 10 * time.Second
	defaultPingInt = 30 * time.Second
)

var ErrHubClosed = errors.New("notification hub is closed")

// StreamMessage is one frame sent to websocket clients.
type StreamMessage struct {
	Type      string                       `json:"type"`
	Status    *models.DeviceStatusSnapshot `json:"status,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan StreamMessage
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub broadcasts status snapshots to websocket clients. A new client gets
// the most recent snapshot first. Slow clients that fill their buffer are
// dropped.
type Hub struct {
	mu           sync.Mutex
	clients      map[*client]struct{}
	last         *models.DeviceStatusSnapshot
	closed       bool
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       logger.Logger
}

// NewHub builds a hub. checkOrigin may be nil to accept any origin.
func NewHub(log logger.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = logger.NewTestLogger()
	}

	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		pingInterval: defaultPingInt,
		logger:       log,
	}
}

func (h *Hub) Notify(_ context.Context, snapshot models.DeviceStatusSnapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	h.last = &snapshot

	msg := StreamMessage{Type: MessageStatus, Status: &snapshot, Timestamp: time.Now()}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn().Str("remote_addr", c.conn.RemoteAddr().String()).Msg("Dropping slow websocket client")
			delete(h.clients, c)
			c.close()
		}
	}

	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// ServeHTTP upgrades the request and streams snapshots until the client
// goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	c := &client{conn: conn, send: make(chan StreamMessage, clientBuffer), done: make(chan struct{})}

	if !h.add(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()

		return
	}

	h.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("WebSocket client connected")

	go h.readLoop(c)

	h.writeLoop(r.Context(), c)

	h.remove(c)
	_ = conn.Close()

	h.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("WebSocket client disconnected")
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	if h.last != nil {
		snap := *h.last
		c.send <- StreamMessage{Type: MessageStatus, Status: &snap, Timestamp: time.Now()}
	}

	h.clients[c] = struct{}{}

	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()
}

// readLoop discards inbound frames and notices disconnects.
func (*Hub) readLoop(c *client) {
	defer c.close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.send:
			if err := h.write(c, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := h.write(c, StreamMessage{Type: MessagePing, Timestamp: time.Now()}); err != nil {
				return
			}
		}
	}
}

func (h *Hub) write(c *client, msg StreamMessage) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	if err := c.conn.WriteJSON(msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			h.logger.Warn().Err(err).Msg("WebSocket write failed")
		}

		return err
	}

	return nil
}

// Close disconnects every client and rejects further notifications.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
