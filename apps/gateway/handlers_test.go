package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmart/realtime/pkg/model"
)

// newest first, the order the history query returns.
func receiptScanFixture(ids ...int64) []model.Message {
	msgs := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, model.Message{ID: id, ConversationID: "dm:alice:bob", SenderID: "bob"})
	}
	return msgs
}

func receiptedSet(ids ...int64) func(int64) (bool, error) {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(id int64) (bool, error) { return set[id], nil }
}

func pendingIDs(msgs []model.Message) []int64 {
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestUnreceiptedComesBackOldestFirst(t *testing.T) {
	pending, err := unreceiptedOldestFirst(receiptScanFixture(5, 4, 3, 2, 1), "alice", receiptedSet())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, pendingIDs(pending))
}

func TestUnreceiptedSkipsOwnMessages(t *testing.T) {
	msgs := receiptScanFixture(3, 2, 1)
	msgs[1].SenderID = "alice"

	pending, err := unreceiptedOldestFirst(msgs, "alice", receiptedSet())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, pendingIDs(pending))
}

func TestUnreceiptedStopsAtFirstReceipt(t *testing.T) {
	pending, err := unreceiptedOldestFirst(receiptScanFixture(5, 4, 3, 2, 1), "alice", receiptedSet(3, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, pendingIDs(pending))
}

// A mark-read attempt can die partway through its inserts. Because
// receipts go in oldest-first, the survivors form an oldest prefix and
// the retry must pick up exactly the newer remainder; no message may be
// stranded behind the stop condition.
func TestUnreceiptedResumesAfterPartialFailure(t *testing.T) {
	msgs := receiptScanFixture(5, 4, 3, 2, 1)

	// First attempt receipted 1 and 2, then failed.
	pending, err := unreceiptedOldestFirst(msgs, "alice", receiptedSet(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 5}, pendingIDs(pending))

	// The retry after those land leaves nothing behind.
	pending, err = unreceiptedOldestFirst(msgs, "alice", receiptedSet(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUnreceiptedPropagatesLookupErrors(t *testing.T) {
	lookupErr := errors.New("store unavailable")
	_, err := unreceiptedOldestFirst(receiptScanFixture(2, 1), "alice", func(int64) (bool, error) {
		return false, lookupErr
	})
	assert.ErrorIs(t, err, lookupErr)
}
