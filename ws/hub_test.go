package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/topichub/models"
	"github.com/cppla/topichub/registry"
)

func newTestClient(hub *Hub, id string) *Client {
	return &Client{ID: id, send: make(chan Event, sendBuffer), hub: hub}
}

func TestHub_Send(t *testing.T) {
	t.Parallel()

	t.Run("missing session", func(t *testing.T) {
		hub := NewHub(registry.New(nil))
		assert.False(t, hub.Send("nope", models.Notification{}))
	})

	t.Run("delivers to a live session", func(t *testing.T) {
		hub := NewHub(registry.New(nil))
		client := newTestClient(hub, "s1")
		hub.clients[client.ID] = client

		n := models.Notification{ID: "n1", Username: "alice", PostID: "p1", Topic: "sports"}
		require.True(t, hub.Send("s1", n))

		evt := <-client.send
		assert.Equal(t, "newPost", evt.Event)
		assert.Equal(t, n, evt.Data)
	})

	t.Run("saturated session drops", func(t *testing.T) {
		hub := NewHub(registry.New(nil))
		client := newTestClient(hub, "s1")
		hub.clients[client.ID] = client

		for i := 0; i < sendBuffer; i++ {
			require.True(t, hub.Send("s1", models.Notification{}))
		}
		assert.False(t, hub.Send("s1", models.Notification{}))
	})

	t.Run("closing session drops", func(t *testing.T) {
		hub := NewHub(registry.New(nil))
		client := newTestClient(hub, "s1")
		hub.clients[client.ID] = client

		client.markClosed()
		assert.False(t, hub.Send("s1", models.Notification{}))
	})
}

func TestClient_Handle(t *testing.T) {
	t.Parallel()

	raw := func(s string) json.RawMessage { return json.RawMessage(s) }

	t.Run("register binds the session", func(t *testing.T) {
		reg := registry.New(nil)
		hub := NewHub(reg)
		client := newTestClient(hub, "s1")

		client.handle(incomingEvent{Event: "register", Data: raw(`{"username":"alice"}`)})
		assert.Equal(t, []string{"s1"}, reg.SessionsOf("alice"))
	})

	t.Run("topic group join and leave", func(t *testing.T) {
		reg := registry.New(nil)
		hub := NewHub(reg)
		client := newTestClient(hub, "s1")

		client.handle(incomingEvent{Event: "subscribeToTopic", Data: raw(`{"topic":"sports"}`)})
		assert.Equal(t, []string{"s1"}, reg.SessionsInTopic("sports"))

		client.handle(incomingEvent{Event: "unsubscribeFromTopic", Data: raw(`{"topic":"sports"}`)})
		assert.Empty(t, reg.SessionsInTopic("sports"))
	})

	t.Run("malformed payloads are ignored", func(t *testing.T) {
		reg := registry.New(nil)
		hub := NewHub(reg)
		client := newTestClient(hub, "s1")

		client.handle(incomingEvent{Event: "register", Data: raw(`{"username":""}`)})
		client.handle(incomingEvent{Event: "subscribeToTopic", Data: raw(`not json`)})
		client.handle(incomingEvent{Event: "whatever", Data: raw(`{}`)})

		assert.Empty(t, reg.SessionsInTopic("sports"))
	})
}

func TestEventMarshal(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(Event{Event: "connected", Data: map[string]string{"sessionId": "s1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"connected","data":{"sessionId":"s1"}}`, string(out))

	out, err = json.Marshal(Event{Event: "ping"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"ping"}`, string(out))
}
