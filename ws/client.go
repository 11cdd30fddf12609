package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cppla/topichub/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect cross-origin from the CORS-allowed frontends.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// incomingEvent mirrors Event for reads, keeping the payload raw until the
// event name says how to decode it.
type incomingEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one live session. It may be bound to a username via the
// register event and joined to any number of topic groups.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan Event
	hub  *Hub

	mu     sync.Mutex
	closed bool
}

// ServeWS upgrades an HTTP request into a session and starts its pumps.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("websocket upgrade failed: %v", err)
		}
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan Event, sendBuffer),
		hub:  hub,
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}

// queue hands an event to the write pump without blocking. It returns false
// once the session is closing or its buffer is full; such events are
// dropped, never retried.
func (c *Client) queue(evt Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// markClosed stops further queueing so the hub can safely close the send
// channel.
func (c *Client) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// readPump consumes client events until the connection dies. Connection
// loss is detected by the pong deadline; either way the session is dropped
// from the hub and registry.
func (c *Client) readPump() {
	defer func() {
		c.markClosed()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var evt incomingEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			continue
		}
		c.handle(evt)
	}
}

func (c *Client) handle(evt incomingEvent) {
	switch evt.Event {
	case "register":
		var payload struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(evt.Data, &payload); err != nil || payload.Username == "" {
			return
		}
		c.hub.registry.BindSession(c.ID, payload.Username)

	case "subscribeToTopic":
		var payload struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal(evt.Data, &payload); err != nil || payload.Topic == "" {
			return
		}
		c.hub.registry.JoinTopic(c.ID, payload.Topic)

	case "unsubscribeFromTopic":
		var payload struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal(evt.Data, &payload); err != nil || payload.Topic == "" {
			return
		}
		c.hub.registry.LeaveTopic(c.ID, payload.Topic)

	default:
		if utils.Sugar != nil {
			utils.Sugar.Debugf("unhandled ws event: %s", evt.Event)
		}
	}
}

// writePump serializes queued events and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
