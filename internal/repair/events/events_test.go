package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfantasy/nimo-repair/internal/repair/sse"
)

func client(hub *sse.Hub, id, user string) *sse.Client {
	c := &sse.Client{ID: id, UserID: user, Events: make(chan sse.Event, 4)}
	hub.Register(c)
	return c
}

func TestHubPublisher_BroadcastAndTargeted(t *testing.T) {
	hub := sse.NewHub(nil)
	anna := client(hub, "c1", "anna")
	luca := client(hub, "c2", "luca")
	p := NewHubPublisher(hub)

	require.NoError(t, p.Publish(context.Background(), Event{Type: OrderUpdated, OrderID: "o1", Number: "RIP00001"}))
	require.Len(t, anna.Events, 1)
	require.Len(t, luca.Events, 1)

	ev := <-anna.Events
	assert.Equal(t, OrderUpdated, ev.EventType)
	assert.Equal(t, "o1", ev.OrderID)
	var got Event
	require.NoError(t, json.Unmarshal([]byte(ev.Data), &got))
	assert.Equal(t, "RIP00001", got.Number)
	<-luca.Events

	require.NoError(t, p.Publish(context.Background(), Event{Type: ChatMessage, OrderID: "o1", UserID: "luca"}))
	assert.Len(t, anna.Events, 0)
	assert.Len(t, luca.Events, 1)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{Type: OrderCreated}))
}
