// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/airquality_monitor/internal/env"
)

const (
	wsWriteWait  = 2 * time.Second
	wsSendBuffer = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards on the LAN connect from other origins
	},
}

// wsClient is one websocket connection. Only its writer goroutine writes
// data frames to conn.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams every successful reading to connected websocket clients.
// Publish never blocks on a client: a client whose queue is full is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	latest  *LatestReading
	log     *zap.Logger
}

// NewHub creates a hub. New clients first receive the latest reading, if any.
func NewHub(latest *LatestReading, log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		latest:  latest,
		log:     log,
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.latest != nil {
		if reading, ok := h.latest.Get(); ok {
			if payload, err := json.Marshal(reading); err == nil {
				c.send <- payload
			}
		}
	}
	h.mu.Unlock()
	h.log.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	go h.writePump(c)

	// Clients never send anything useful; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	h.log.Debug("websocket client disconnected", zap.String("remote", r.RemoteAddr))
}

// Publish implements ReadingSink.
func (h *Hub) Publish(r env.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("websocket client too slow, dropping")
			h.removeLocked(c)
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

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.removeLocked(c)
	}
}

// writePump drains the client's queue until it is closed, then sends a
// close frame and closes the connection.
func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()

	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debug("websocket write error, dropping client", zap.Error(err))
			h.remove(c)
			return
		}
	}

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
		time.Now().Add(wsWriteWait))
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}
