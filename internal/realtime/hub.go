// Package realtime fans tracking updates out to WebSocket subscribers.
package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Message types sent to subscribers
const (
	MessageTypeStatus   = "status"
	MessageTypeAlert    = "alert"
	MessageTypeAdvisory = "advisory"
	MessageTypeStopped  = "stopped"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is the JSON frame written to subscribers
type Message struct {
	Type      string `json:"type"`
	PatientID string `json:"patientId,omitempty"`
	Data      any    `json:"data"`
}

// Hub tracks subscribers per patient and delivers published messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is canceled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			h.logger.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("websocket client connected",
				zap.String("patient_id", client.patientID),
				zap.Int("total_clients", total),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("websocket client disconnected",
				zap.String("patient_id", client.patientID),
				zap.Int("total_clients", total),
			)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Register adds a client; it is a no-op once the hub has stopped
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues a message for the subscribers of patientID. Messages are
// dropped when the queue is full.
func (h *Hub) Publish(patientID, messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, PatientID: patientID, Data: data}:
	default:
		h.logger.Warn("broadcast channel full, dropping message",
			zap.String("patient_id", patientID),
			zap.String("message_type", messageType),
		)
	}
}

// ClientCount returns the number of subscribers for a patient
func (h *Hub) ClientCount(patientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.patientID == patientID {
			n++
		}
	}
	return n
}

func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.patientID != message.PatientID {
			continue
		}
		select {
		case client.send <- message:
		default:
			// slow consumer
			client.closeSend()
			delete(h.clients, client)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
	}
}
