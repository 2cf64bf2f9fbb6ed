package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/db"
	"github.com/localmart/realtime/pkg/model"
	"github.com/localmart/realtime/pkg/unread"
)

// recordSource is the slice of kafka.Reader the consumer uses. Fetch and
// commit are split so an offset is only committed after its record has
// been fully applied; a crash mid-apply replays the record.
type recordSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer materializes the durable event log into queryable state:
// message rows, per-user conversation summaries, and unread counters.
// Records are applied with idempotent upserts, so at-least-once delivery
// from Kafka never double-writes a message.
type Consumer struct {
	reader recordSource
	db     *db.Session
	rdb    *redis.Client
	unread *unread.Service
	logger *zap.Logger

	// applyRecord persists one message; swapped out in tests.
	applyRecord func(ctx context.Context, msg model.Message) error
}

func NewConsumer(brokers []string, topic, groupID string, session *db.Session, rdb *redis.Client, logger *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	c := &Consumer{
		reader: r,
		db:     session,
		rdb:    rdb,
		unread: unread.NewService(unread.NewScyllaStore(session)),
		logger: logger,
	}
	c.applyRecord = c.apply
	return c
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		rec, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("fetch failed, retrying", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// Retry until the record is applied. Committing first would
		// discard the message row, both conversation summaries, and the
		// unread bump whenever the store hiccups mid-apply. If the store
		// stays down past the retry budget, stop without committing; the
		// restarted consumer replays from the last committed offset.
		if err := c.process(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("store unavailable, stopping for replay",
				zap.Int64("offset", rec.Offset),
				zap.Error(err))
			return
		}

		if err := c.reader.CommitMessages(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return
			}
			// The apply is idempotent, so the replay after this lost
			// commit is harmless.
			c.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

// process applies one record, retrying transient store failures with
// backoff. Malformed or irrelevant records succeed immediately so their
// offsets commit and the group moves past them.
func (c *Consumer) process(ctx context.Context, rec kafka.Message) error {
	var ev model.Event
	if err := json.Unmarshal(rec.Value, &ev); err != nil {
		c.logger.Warn("skipping malformed record", zap.Error(err))
		return nil
	}

	// Only new messages materialize here. Typing is ephemeral; receipts
	// and notification state are written synchronously by the services
	// that own those actions.
	if ev.Type != model.EventNewMessage {
		return nil
	}

	var msg model.Message
	if err := ev.DecodePayload(&msg); err != nil {
		c.logger.Warn("skipping malformed message payload", zap.Error(err))
		return nil
	}

	op := func() error { return c.applyRecord(ctx, msg) }
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

func (c *Consumer) apply(ctx context.Context, msg model.Message) error {
	a, b, err := model.Participants(msg.ConversationID)
	if err != nil {
		return err
	}

	// Same primary key -> replaying a record overwrites the same row.
	q := `INSERT INTO messages (conversation_id, id, sender_id, body, created_at) VALUES (?, ?, ?, ?, ?)`
	if err := c.db.Query(q, msg.ConversationID, msg.ID, msg.SenderID, msg.Body, msg.CreatedAt).WithContext(ctx).Exec(); err != nil {
		return err
	}

	// Denormalized last-message summary for both sides of the conversation.
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		q := `INSERT INTO user_conversations (user_id, conversation_id, other_user_id, last_message_id, last_message_body, last_message_sender, last_activity) VALUES (?, ?, ?, ?, ?, ?, ?)`
		if err := c.db.Query(q, pair[0], msg.ConversationID, pair[1], msg.ID, msg.Body, msg.SenderID, msg.CreatedAt).WithContext(ctx).Exec(); err != nil {
			return err
		}
	}

	bumped, err := c.unread.RecordDelivery(ctx, msg.ConversationID, msg.SenderID, []string{a, b}, func(userID string) bool {
		viewing, err := c.rdb.SIsMember(ctx, "room:"+msg.ConversationID+":viewers", userID).Result()
		if err != nil {
			// Presence unavailable: counting is safer than silently
			// losing an unread.
			c.logger.Warn("viewer check failed", zap.Error(err))
			return false
		}
		return viewing
	})
	if err != nil {
		return err
	}
	if len(bumped) > 0 {
		c.logger.Debug("unread counters bumped",
			zap.Int64("message_id", msg.ID),
			zap.Strings("users", bumped))
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
