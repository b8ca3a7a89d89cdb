package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherPublishBroadcastsToSubscriber(t *testing.T) {
	manager := NewConnectionManager(5 * time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		require.NoError(t, err)
		manager.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(server.Close)

	conn := connectWS(t, server)
	readJSON(t, conn) // connection.established
	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: RunChannel("run-1")})
	readJSON(t, conn) // subscription.confirmed
	assert.Eventually(t, func() bool { return manager.subscriberCount(RunChannel("run-1")) == 1 }, time.Second, 5*time.Millisecond)

	pub := NewPublisher(manager)
	pub.Publish(NewProgress("run-1", "expansion", StatusProgress, 42, "expanding", nil, time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var got Progress
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 42, got.Progress)
	assert.Equal(t, "expanding", got.Message)
}

func TestRunChannelFormat(t *testing.T) {
	assert.Equal(t, "run:abc-123", RunChannel("abc-123"))
}
