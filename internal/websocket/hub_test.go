package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubNotifiesConnectedUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	client := &Client{Hub: hub, UserID: "b", Send: make(chan []byte, 4)}
	require.True(t, hub.Join(client))
	require.Eventually(t, func() bool { return hub.IsConnected("b") }, time.Second, 5*time.Millisecond)

	hub.Notify("b", map[string]string{"type": "message.new"})
	hub.Notify("nobody", map[string]string{"type": "ignored"})

	select {
	case payload := <-client.Send:
		var event map[string]string
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, "message.new", event["type"])
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	hub.Leave(client)
	require.Eventually(t, func() bool { return !hub.IsConnected("b") }, time.Second, 5*time.Millisecond)

	_, open := <-client.Send
	assert.False(t, open, "unregistering closes the send channel")
}

func TestHubJoinAndLeaveAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{Hub: hub, UserID: "a", Send: make(chan []byte, 1)}
	require.True(t, hub.Join(client))
	require.Eventually(t, func() bool { return hub.IsConnected("a") }, time.Second, 5*time.Millisecond)

	cancel()
	<-stopped

	finished := make(chan struct{})
	go func() {
		hub.Leave(client)
		late := &Client{Hub: hub, UserID: "b", Send: make(chan []byte, 1)}
		assert.False(t, hub.Join(late))
		hub.Notify("a", map[string]string{"type": "ignored"})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("hub calls blocked after Run returned")
	}
	_, open := <-client.Send
	assert.False(t, open, "stopping closes the send channel")
}
