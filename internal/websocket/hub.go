package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/searchai/api/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to job subscribers
	broadcast chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			slog.Debug("websocket client registered", "job_id", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			slog.Debug("websocket client unregistered", "job_id", client.JobID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.JobID] {
				select {
				case client.Send <- msg.Message:
				default:
					// Slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops client and closes its send channel. Callers hold mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribers returns the number of clients watching jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// Publish sends a job event to all subscribers of its job
func (h *Hub) Publish(ctx context.Context, event model.JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal job event", "job_id", event.JobID, "error", err)
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{JobID: event.JobID, Message: data}:
	case <-ctx.Done():
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	done := make(chan struct{})
	defer close(done)
	pongs := make(chan []byte, 1)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case message := <-pongs:
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}

			case <-done:
				return
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error", "job_id", jobID, "error", err)
			}
			break
		}

		// Handle client messages (ping/pong)
		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case pongs <- data:
			default:
			}
		}
	}
}
