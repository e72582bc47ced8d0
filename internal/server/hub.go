package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics"
	"github.com/kubilitics/kubilitics-thermal/internal/metrics"
)

// Message types pushed to report subscribers.
const (
	MessageTypeReport  = "report"
	MessageTypeWelcome = "welcome"
)

// WSMessage is one frame sent to /ws/reports clients.
type WSMessage struct {
	Type      string            `json:"type"`
	Result    *analytics.Result `json:"result,omitempty"`
	ClientID  string            `json:"clientId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Hub maintains active WebSocket connections and broadcasts reports
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu     sync.RWMutex
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub
func NewHub(ctx context.Context, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run starts the hub loop; it returns when the hub is stopped.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.WebSocketMessagesTotal.WithLabelValues("outbound").Inc()
				default:
					// Slow consumer; drop it.
					close(client.send)
					delete(h.clients, client)
					metrics.WebSocketConnections.Dec()
					h.logger.Warn("Dropping slow WebSocket client", zap.String("client_id", client.id))
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.WebSocketConnections.Dec()
	}
}

// Stop stops the hub and disconnects every client.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketConnections.Dec()
	}
}

// Publish broadcasts an analysis result to all clients.
func (h *Hub) Publish(ctx context.Context, res *analytics.Result) error {
	data, err := json.Marshal(WSMessage{
		Type:      MessageTypeReport,
		Result:    res,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
