package ws

import (
	"sync"

	"github.com/cppla/topichub/models"
	"github.com/cppla/topichub/registry"
	"github.com/cppla/topichub/utils"
)

// Event is the wire frame exchanged with clients in both directions.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hub tracks live sessions and delivers server-emitted events. Session to
// user binding and topic group membership live in the registry; the hub
// only owns the connections themselves.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client // keyed by session id
	register   chan *Client
	unregister chan *Client

	registry *registry.Registry
}

// NewHub creates a hub backed by the given registry.
func NewHub(reg *registry.Registry) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		registry:   reg,
	}
}

// Run processes connect and disconnect events. It must be started exactly
// once, before the router begins accepting upgrades.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			client.queue(Event{Event: "connected", Data: map[string]string{"sessionId": client.ID}})
			if utils.Sugar != nil {
				utils.Sugar.Infof("session connected: %s, total: %d", client.ID, total)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.registry.DropSession(client.ID)
			if utils.Sugar != nil {
				utils.Sugar.Infof("session disconnected: %s, total: %d", client.ID, total)
			}
		}
	}
}

// Send delivers a newPost event to one session. Delivery to a session that
// is gone, closing, or saturated is a silent drop; the notification backlog
// already holds the durable record.
func (h *Hub) Send(sessionID string, n models.Notification) bool {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return client.queue(Event{Event: "newPost", Data: n})
}
