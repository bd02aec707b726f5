// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
)

// Message types delivered to clients.
const (
	MessageTypePing               = "ping"
	MessageTypePong               = "pong"
	MessageTypeTicketCreated      = "ticket_created"
	MessageTypeTicketUpdated      = "ticket_updated"
	MessageTypeAttendanceCheckIn  = "attendance_checkin"
	MessageTypeAttendanceCheckOut = "attendance_checkout"
	MessageTypeReportReady        = "report_ready"
	MessageTypeNotice             = "notice"
)

// Message is the wire format sent to clients.
type Message struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// envelope routes a message to one tenant's clients, or to all clients
// when tenant is empty.
type envelope struct {
	tenant string
	msg    Message
}

// Hub maintains the set of active clients and fans tenant-scoped
// messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub ready to Serve.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Serve runs the hub loop until the context is canceled, then closes
// every client and returns ctx.Err(). Lifecycle events are drained
// before broadcasts so the client set is consistent when a message
// fans out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Drain pending lifecycle events before handling broadcasts.
		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case env := <-h.broadcast:
			h.fanOut(env)
		}
	}
}

func (h *Hub) String() string {
	return "websocket.hub"
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Info().
		Str("tenant_id", client.tenantID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.WSConnections.Dec()
		logging.Info().
			Str("tenant_id", client.tenantID).
			Int("total_clients", total).
			Msg("websocket client disconnected")
	}
}

// fanOut delivers to matching clients in client-ID order so delivery is
// reproducible under test. Clients with a full send buffer are dropped.
func (h *Hub) fanOut(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if env.tenant == "" || client.tenantID == env.tenant {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- env.msg:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
		logging.Warn().
			Str("tenant_id", client.tenantID).
			Msg("dropping slow websocket client")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
	}
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message for one tenant's clients. An empty tenant
// reaches every client. The message is dropped when the broadcast
// buffer is full; the websocket feed is best-effort and the API remains
// the source of truth.
func (h *Hub) Broadcast(tenantID, messageType string, data interface{}) {
	env := envelope{
		tenant: tenantID,
		msg: Message{
			Type:      messageType,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Data:      data,
		},
	}

	select {
	case h.broadcast <- env:
	default:
		logging.Warn().
			Str("message_type", messageType).
			Str("tenant_id", tenantID).
			Msg("broadcast channel full, dropping message")
	}
}

// MarshalMessage renders a message the way the write pump does, for
// handlers that need the raw bytes.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
