package unread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notViewing(string) bool { return false }

func TestRecordDeliveryIncrementsAbsentParticipants(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	conv := "dm:alice:bob"

	bumped, err := svc.RecordDelivery(ctx, conv, "alice", []string{"alice", "bob"}, notViewing)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, bumped, "sender must never be counted")

	counts, err := svc.Counts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.PerConversation[conv])
	assert.Equal(t, int64(1), counts.Total)

	senderCounts, err := svc.Counts(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, senderCounts.Total)
}

func TestRecordDeliverySkipsActiveViewers(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	bumped, err := svc.RecordDelivery(ctx, "dm:alice:bob", "alice", []string{"alice", "bob"},
		func(userID string) bool { return userID == "bob" })
	require.NoError(t, err)
	assert.Empty(t, bumped, "delivered while viewing is not unread")

	counts, _ := svc.Counts(ctx, "bob")
	assert.Zero(t, counts.Total)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	conv := "dm:alice:bob"

	_, err := svc.RecordDelivery(ctx, conv, "alice", []string{"alice", "bob"}, notViewing)
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, "bob", conv))
	require.NoError(t, svc.MarkRead(ctx, "bob", conv), "marking an already-zero counter must succeed")
	require.NoError(t, svc.MarkRead(ctx, "bob", "dm:bob:carol"), "absent counter must succeed")

	counts, _ := svc.Counts(ctx, "bob")
	assert.Zero(t, counts.PerConversation[conv])
	assert.Zero(t, counts.Total)
}

func TestTotalIsAlwaysSumOfCounters(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordDelivery(ctx, "dm:alice:bob", "alice", []string{"alice", "bob"}, notViewing)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := svc.RecordDelivery(ctx, "dm:bob:carol", "carol", []string{"bob", "carol"}, notViewing)
		require.NoError(t, err)
	}

	counts, err := svc.Counts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.PerConversation["dm:alice:bob"])
	assert.Equal(t, int64(2), counts.PerConversation["dm:bob:carol"])
	assert.Equal(t, int64(5), counts.Total)

	var sum int64
	for _, n := range counts.PerConversation {
		sum += n
	}
	assert.Equal(t, counts.Total, sum)
}

// The full lifecycle: A sends while B is away, B reads, A sends while B
// views, B leaves and A sends again.
func TestViewerGatedScenario(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	conv := "dm:a:b"
	participants := []string{"a", "b"}

	viewing := false
	isViewing := func(userID string) bool { return userID == "b" && viewing }

	// A sends "hi" while B is not joined.
	_, err := svc.RecordDelivery(ctx, conv, "a", participants, isViewing)
	require.NoError(t, err)
	counts, _ := svc.Counts(ctx, "b")
	assert.Equal(t, int64(1), counts.PerConversation[conv])
	assert.Equal(t, int64(1), counts.Total)

	// B joins and marks read.
	viewing = true
	require.NoError(t, svc.MarkRead(ctx, "b", conv))
	counts, _ = svc.Counts(ctx, "b")
	assert.Zero(t, counts.Total)

	// A sends "there" while B is still viewing.
	_, err = svc.RecordDelivery(ctx, conv, "a", participants, isViewing)
	require.NoError(t, err)
	counts, _ = svc.Counts(ctx, "b")
	assert.Zero(t, counts.Total, "viewing B must not accumulate unread")

	// B leaves, A sends "bye".
	viewing = false
	_, err = svc.RecordDelivery(ctx, conv, "a", participants, isViewing)
	require.NoError(t, err)
	counts, _ = svc.Counts(ctx, "b")
	assert.Equal(t, int64(1), counts.PerConversation[conv])
	assert.Equal(t, int64(1), counts.Total)
}
