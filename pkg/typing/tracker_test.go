package typing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryExpiresAfterTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := NewTrackerWithClock(func() time.Time { return now })

	tr.Set("dm:a:b", "a", "Alice")
	assert.True(t, tr.IsTyping("dm:a:b", "a"))

	now = now.Add(999 * time.Millisecond)
	assert.True(t, tr.IsTyping("dm:a:b", "a"), "entry must survive just under the TTL")

	now = now.Add(2 * time.Millisecond)
	assert.False(t, tr.IsTyping("dm:a:b", "a"), "entry must expire one second after the last keystroke")
}

func TestNewKeystrokeExtendsTheEntry(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := NewTrackerWithClock(func() time.Time { return now })

	tr.Set("dm:a:b", "a", "Alice")
	now = now.Add(900 * time.Millisecond)
	tr.Set("dm:a:b", "a", "Alice")
	now = now.Add(900 * time.Millisecond)

	assert.True(t, tr.IsTyping("dm:a:b", "a"))

	// One entry per (conversation, user): replaced, not appended.
	require.Len(t, tr.Active("dm:a:b"), 1)
}

func TestExplicitStopClearsImmediately(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := NewTrackerWithClock(func() time.Time { return now })

	tr.Set("dm:a:b", "a", "Alice")
	tr.Clear("dm:a:b", "a")
	assert.False(t, tr.IsTyping("dm:a:b", "a"))
}

func TestActiveFiltersByConversation(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := NewTrackerWithClock(func() time.Time { return now })

	tr.Set("dm:a:b", "a", "Alice")
	tr.Set("dm:a:c", "c", "Carol")

	entries := tr.Active("dm:a:b")
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].UserID)
	assert.Equal(t, "Alice", entries[0].UserName)
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := NewTrackerWithClock(func() time.Time { return now })

	tr.Set("dm:a:b", "a", "Alice")
	tr.Set("dm:a:b", "b", "Bob")
	now = now.Add(2 * time.Second)
	tr.Sweep()

	assert.Empty(t, tr.Active("dm:a:b"))
}
