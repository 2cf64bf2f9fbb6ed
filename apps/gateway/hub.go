package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/model"
	"github.com/localmart/realtime/pkg/notify"
	"github.com/localmart/realtime/pkg/rooms"
	"github.com/localmart/realtime/pkg/snowflake"
)

// Hub owns the connection registry and the two halves of the event bus: a
// Kafka producer that makes every action durable before anyone sees it, and
// a per-gateway fan-out consumer that pushes acked events to the local
// connections they target.
type Hub struct {
	registry *rooms.Registry[*Client]
	presence *viewerPresence
	store    *store
	notify   *notify.Store
	producer *kafka.Writer
	ids      *snowflake.Node
	logger   *zap.Logger

	consumer *kafka.Reader

	register   chan *Client
	unregister chan *Client
}

func NewHub(brokers []string, topic string, st *store, notifyStore *notify.Store, presence *viewerPresence, ids *snowflake.Node, logger *zap.Logger) *Hub {
	// Keyed by conversation (or user) id so everything for one room lands
	// on one partition, preserving per-room delivery order.
	producer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}

	h := &Hub{
		registry:   rooms.NewRegistry[*Client](),
		presence:   presence,
		store:      st,
		notify:     notifyStore,
		producer:   producer,
		ids:        ids,
		logger:     logger,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
	}

	// Unique consumer group per gateway instance: every gateway sees every
	// event and forwards it to whichever target connections it holds.
	h.consumer = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     "gateway-" + uuid.New().String(),
		StartOffset: kafka.LastOffset,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	})

	return h
}

// Run processes connection lifecycle. Disconnect purges all memberships in
// one registry operation before any further fan-out snapshot can include
// the dead connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.producer.Close()

	if h.consumer != nil {
		go h.fanout(ctx, h.consumer)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.registry.Bind(client, client.UserID)
			h.logger.Info("connection registered",
				zap.String("conn_id", client.ID),
				zap.String("user", client.UserID))
		case client := <-h.unregister:
			// A dying connection can be unregistered from more than one
			// place; only the first purge tears it down.
			left, bound := h.registry.Purge(client)
			if !bound {
				continue
			}
			close(client.done)
			for _, roomID := range left {
				h.presence.remove(ctx, roomID, client.UserID)
			}
			h.logger.Info("connection purged",
				zap.String("conn_id", client.ID),
				zap.String("user", client.UserID),
				zap.Int("rooms_left", len(left)))
		}
	}
}

// publish makes an event durable. The Kafka ack is the durability point:
// fan-out consumers only read acked records, so no client can be notified
// of state that would vanish on replay.
func (h *Hub) publish(ctx context.Context, ev model.Event, key string) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	op := func() error {
		return h.producer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(key),
			Value: value,
			Time:  time.Now(),
		})
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

// fanout routes acked events to local target connections.
func (h *Hub) fanout(ctx context.Context, consumer *kafka.Reader) {
	defer consumer.Close()

	for {
		rec, err := consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Error("fanout consumer stopped", zap.Error(err))
			return
		}

		var ev model.Event
		if err := json.Unmarshal(rec.Value, &ev); err != nil {
			h.logger.Warn("dropping malformed event", zap.Error(err))
			continue
		}
		h.route(ev)
	}
}

func (h *Hub) route(ev model.Event) {
	var targets []*Client
	switch {
	case ev.TargetUserID != "":
		targets = h.registry.UserConns(ev.TargetUserID)
	case ev.Room != "":
		targets = h.registry.RoomConns(ev.Room)
	default:
		return
	}

	// Strip routing metadata; clients only see the typed envelope.
	out := model.Event{Type: ev.Type, Payload: ev.Payload}

	for _, c := range targets {
		if c.ID == ev.OriginConnID {
			continue
		}
		// Typing goes to the *other* room members.
		if ev.Type == model.EventUserTyping && c.UserID == ev.OriginUserID {
			continue
		}
		h.deliver(c, out)
	}
}

// deliver pushes one event to one connection, retrying transient buffer
// pressure a bounded number of times. A connection that stays stuck is
// dropped; the client recovers by reconnect-and-refetch, not event replay.
func (h *Hub) deliver(c *Client, ev model.Event) {
	for attempt := 0; attempt < 3; attempt++ {
		if c.send(ev) {
			return
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	h.logger.Warn("dropping stuck connection",
		zap.String("conn_id", c.ID),
		zap.String("user", c.UserID))
	// Closing the socket makes readPump exit, and its deferred unregister
	// purges the connection. Sending to unregister directly here could be
	// dropped under load and would leave the connection registered.
	c.conn.Close()
}

// sendError reports a terminal action failure to the triggering connection
// only; other connections never observe it.
func (h *Hub) sendError(c *Client, action string, code, msg string) {
	c.send(model.NewEvent(model.EventError, model.ErrorPayload{
		Code:    code,
		Message: msg,
		Action:  action,
	}))
}
