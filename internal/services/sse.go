package services

import (
	"sync"
	"time"
)

// NotificationEvent is pushed to a user's open event streams.
type NotificationEvent struct {
	ID         uint      `json:"id"`
	UserID     uint      `json:"user_id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	ProjectID  *uint     `json:"project_id,omitempty"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   *uint     `json:"entity_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type sseClient struct {
	userID uint
	ch     chan NotificationEvent
}

// SSEHub manages SSE client connections and routes events to the clients of
// the event's user.
type SSEHub struct {
	clients map[string]*sseClient
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*sseClient),
	}
}

// Subscribe registers a client of userID and returns its event channel.
func (h *SSEHub) Subscribe(clientID string, userID uint) <-chan NotificationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Buffered so a slow reader does not block publishers
	ch := make(chan NotificationEvent, 100)
	h.clients[clientID] = &sseClient{userID: userID, ch: ch}
	return ch
}

func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
}

// Publish delivers the event to every client of event.UserID.
func (h *SSEHub) Publish(event NotificationEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.userID != event.UserID {
			continue
		}
		// Drop the event if the client buffer is full
		select {
		case c.ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
