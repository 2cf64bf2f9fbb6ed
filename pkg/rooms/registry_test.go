package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{ id string }

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry[*fakeConn]()
	c := &fakeConn{id: "c1"}
	r.Bind(c, "alice")

	require.True(t, r.Join(c, "dm:alice:bob"))
	require.False(t, r.Join(c, "dm:alice:bob"), "second join must be a no-op")
	assert.Len(t, r.RoomConns("dm:alice:bob"), 1)
}

func TestJoinBeforeBindIsRejected(t *testing.T) {
	r := NewRegistry[*fakeConn]()
	c := &fakeConn{id: "c1"}

	assert.False(t, r.Join(c, "dm:alice:bob"))
	assert.Empty(t, r.RoomConns("dm:alice:bob"))
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRegistry[*fakeConn]()
	c := &fakeConn{id: "c1"}
	r.Bind(c, "alice")
	r.Join(c, "dm:alice:bob")

	require.True(t, r.Leave(c, "dm:alice:bob"))
	require.False(t, r.Leave(c, "dm:alice:bob"))
	assert.False(t, r.InRoom(c, "dm:alice:bob"))
}

func TestUserChannelTracksAllConnections(t *testing.T) {
	r := NewRegistry[*fakeConn]()
	tab := &fakeConn{id: "tab"}
	phone := &fakeConn{id: "phone"}
	r.Bind(tab, "alice")
	r.Bind(phone, "alice")

	assert.Len(t, r.UserConns("alice"), 2)

	user, ok := r.UserOf(tab)
	require.True(t, ok)
	assert.Equal(t, "alice", user)
}

func TestJoinAll(t *testing.T) {
	r := NewRegistry[*fakeConn]()
	c := &fakeConn{id: "c1"}
	r.Bind(c, "alice")

	r.JoinAll(c, []string{"dm:alice:bob", "dm:alice:carol", "dm:alice:bob"})
	assert.ElementsMatch(t, []string{"dm:alice:bob", "dm:alice:carol"}, r.Rooms(c))
}

func TestPurgeRemovesEverythingAtOnce(t *testing.T) {
	r := NewRegistry[*fakeConn]()
	c := &fakeConn{id: "c1"}
	other := &fakeConn{id: "c2"}
	r.Bind(c, "alice")
	r.Bind(other, "bob")
	r.Join(c, "dm:alice:bob")
	r.Join(c, "dm:alice:carol")
	r.Join(other, "dm:alice:bob")

	left, bound := r.Purge(c)
	require.True(t, bound)
	assert.ElementsMatch(t, []string{"dm:alice:bob", "dm:alice:carol"}, left)

	assert.Empty(t, r.UserConns("alice"))
	assert.Empty(t, r.Rooms(c))
	assert.False(t, r.InRoom(c, "dm:alice:bob"))

	// Unrelated connections keep their memberships.
	assert.Len(t, r.RoomConns("dm:alice:bob"), 1)
}

func TestPurgeUnknownConnIsSafe(t *testing.T) {
	r := NewRegistry[*fakeConn]()
	left, bound := r.Purge(&fakeConn{id: "ghost"})
	assert.Empty(t, left)
	assert.False(t, bound)
}

func TestPurgeReportsFirstPurgeOnly(t *testing.T) {
	r := NewRegistry[*fakeConn]()
	c := &fakeConn{id: "c1"}
	r.Bind(c, "alice")
	r.Join(c, "dm:alice:bob")

	// A disconnecting connection can be purged from more than one place.
	// Only the first purge may run the caller's teardown.
	_, bound := r.Purge(c)
	require.True(t, bound)
	left, bound := r.Purge(c)
	assert.False(t, bound)
	assert.Empty(t, left)
}
