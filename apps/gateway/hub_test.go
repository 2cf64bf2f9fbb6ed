package main

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/rooms"
)

func newTestHub() *Hub {
	return &Hub{
		registry:   rooms.NewRegistry[*Client](),
		presence:   newViewerPresence(newFakeSet(), zap.NewNop()),
		producer:   &kafka.Writer{},
		logger:     zap.NewNop(),
		register:   make(chan *Client, 8),
		unregister: make(chan *Client, 8),
	}
}

// A connection is unregistered both by a stuck-delivery drop and by the
// read loop's deferred cleanup when the socket dies. The second unregister
// must be a no-op, not a double close of the done channel.
func TestRunSurvivesDoubleUnregister(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &Client{ID: "c1", UserID: "alice", done: make(chan struct{})}
	h.register <- c
	require.Eventually(t, func() bool {
		return len(h.registry.UserConns("alice")) == 1
	}, time.Second, 5*time.Millisecond)

	h.unregister <- c
	h.unregister <- c

	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("done channel never closed")
	}

	// The hub loop must still be alive and serving after the duplicate.
	c2 := &Client{ID: "c2", UserID: "bob", done: make(chan struct{})}
	h.register <- c2
	require.Eventually(t, func() bool {
		return len(h.registry.UserConns("bob")) == 1
	}, time.Second, 5*time.Millisecond)
	require.Empty(t, h.registry.UserConns("alice"))
}
