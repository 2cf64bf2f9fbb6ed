package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/model"
)

type fakeSource struct {
	records   []kafka.Message
	next      int
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if f.next >= len(f.records) {
		f.cancel()
		return kafka.Message{}, context.Canceled
	}
	rec := f.records[f.next]
	f.next++
	return rec, nil
}

func (f *fakeSource) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeSource) Close() error { return nil }

func record(t *testing.T, offset int64, ev model.Event) kafka.Message {
	t.Helper()
	value, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func messageRecord(t *testing.T, offset, id int64) kafka.Message {
	return record(t, offset, model.NewEvent(model.EventNewMessage, model.Message{
		ID:             id,
		ConversationID: "dm:alice:bob",
		SenderID:       "alice",
		Body:           "hey",
		CreatedAt:      time.Now().UTC(),
	}))
}

// Offsets must only commit after the record is fully applied: a store
// failure mid-apply leaves the offset uncommitted so a restart replays
// the record instead of losing the row, summaries, and unread bump.
func TestOffsetCommitsOnlyAfterApply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeSource{records: []kafka.Message{messageRecord(t, 7, 100)}, cancel: cancel}
	c := &Consumer{reader: src, logger: zap.NewNop()}

	calls := 0
	var applied []int64
	c.applyRecord = func(ctx context.Context, msg model.Message) error {
		calls++
		if calls == 1 {
			return errors.New("store hiccup")
		}
		applied = append(applied, msg.ID)
		return nil
	}

	c.Run(ctx)

	require.Equal(t, []int64{100}, applied, "record must be retried, not skipped")
	assert.Equal(t, []int64{7}, src.committed)
	assert.Equal(t, 2, calls)
}

func TestPersistentApplyFailureStopsWithoutCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeSource{records: []kafka.Message{
		messageRecord(t, 3, 100),
		messageRecord(t, 4, 101),
	}, cancel: cancel}
	c := &Consumer{reader: src, logger: zap.NewNop()}
	c.applyRecord = func(ctx context.Context, msg model.Message) error {
		return backoff.Permanent(errors.New("store down"))
	}

	c.Run(ctx)

	assert.Empty(t, src.committed, "a failed record must stay uncommitted for replay")
	assert.Equal(t, 1, src.next, "the consumer must stop, not skip ahead")
}

// Records that carry no durable state still commit so the group moves on.
func TestEphemeralRecordsCommitImmediately(t *testing.T) {
	typing := record(t, 9, model.NewEvent(model.EventUserTyping, model.UserTypingPayload{
		ConversationID: "dm:alice:bob",
		UserID:         "alice",
		IsTyping:       true,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeSource{records: []kafka.Message{typing}, cancel: cancel}
	c := &Consumer{reader: src, logger: zap.NewNop()}
	c.applyRecord = func(ctx context.Context, msg model.Message) error {
		t.Fatal("ephemeral records must not be applied")
		return nil
	}

	c.Run(ctx)

	assert.Equal(t, []int64{9}, src.committed)
}
