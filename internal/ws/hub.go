package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Conn is the part of a websocket connection the hub writes to
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a connection subscribed to one merchant's events
type Client struct {
	Conn       Conn
	MerchantID string
}

// Event is the envelope pushed to dashboards
type Event struct {
	Type       string    `json:"type"`
	MerchantID string    `json:"merchant_id"`
	Payload    any       `json:"payload,omitempty"`
	At         time.Time `json:"at"`
}

const (
	EventSyncCompleted          = "sync_completed"
	EventSyncFailed             = "sync_failed"
	EventRecommendationsUpdated = "recommendations_updated"
)

type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan Event
	done       chan struct{} // closed when Run returns
	mutex      sync.Mutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan Event, 64),
		done:       make(chan struct{}),
		log:        log.Named("ws"),
	}
}

// Publish queues an event for the merchant's clients. It never blocks;
// events are dropped while the queue is full.
func (h *Hub) Publish(merchantID, eventType string, payload any) {
	ev := Event{Type: eventType, MerchantID: merchantID, Payload: payload, At: time.Now().UTC()}
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("dropping event, broadcast queue full", zap.String("type", eventType), zap.String("merchant", merchantID))
	}
}

// Join registers c. It returns false once the hub has stopped.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters c; after the hub has stopped it is a no-op
func (h *Hub) Leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.Clients {
				c.Conn.Close()
				delete(h.Clients, c)
			}
			h.mutex.Unlock()
			return

		case c := <-h.Register:
			h.mutex.Lock()
			h.Clients[c] = true
			h.mutex.Unlock()
			h.log.Debug("client connected", zap.String("merchant", c.MerchantID))

		case c := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[c]; ok {
				delete(h.Clients, c)
				c.Conn.Close()
			}
			h.mutex.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("encode event", zap.String("type", ev.Type), zap.Error(err))
				continue
			}
			h.mutex.Lock()
			for c := range h.Clients {
				if c.MerchantID != ev.MerchantID {
					continue
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
					c.Conn.Close()
					delete(h.Clients, c)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}
