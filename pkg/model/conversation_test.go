package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, ConversationID("alice", "bob"), ConversationID("bob", "alice"))
	assert.Equal(t, "dm:alice:bob", ConversationID("bob", "alice"))
}

func TestParticipants(t *testing.T) {
	a, b, err := Participants("dm:alice:bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	for _, bad := range []string{"", "alice:bob", "dm:", "dm:alice", "dm::bob", "dm:alice:"} {
		_, _, err := Participants(bad)
		assert.Error(t, err, "id %q", bad)
	}
}

func TestValidUserID(t *testing.T) {
	for _, ok := range []string{"alice", "Bob-2", "svc_orders", "a.b.c", "x"} {
		assert.True(t, ValidUserID(ok), "id %q", ok)
	}
	// A ":" in a user id would make every derived conversation id
	// unparseable, so ids with delimiters never get past login.
	for _, bad := range []string{"", "a:b", "dm:alice", "a b", "été", "a/b", string(make([]byte, 65))} {
		assert.False(t, ValidUserID(bad), "id %q", bad)
	}
}

func TestIsParticipant(t *testing.T) {
	conv := ConversationID("alice", "bob")
	assert.True(t, IsParticipant(conv, "alice"))
	assert.True(t, IsParticipant(conv, "bob"))
	assert.False(t, IsParticipant(conv, "carol"))
	assert.False(t, IsParticipant("garbage", "alice"))
}

func TestOtherParticipant(t *testing.T) {
	conv := ConversationID("alice", "bob")

	other, err := OtherParticipant(conv, "alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", other)

	other, err = OtherParticipant(conv, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", other)

	_, err = OtherParticipant(conv, "carol")
	assert.Error(t, err)
}

func TestHasReader(t *testing.T) {
	m := Message{ReadBy: []ReadReceipt{{UserID: "bob"}}}
	assert.True(t, m.HasReader("bob"))
	assert.False(t, m.HasReader("alice"))
}

func TestEventPayloadRoundTrip(t *testing.T) {
	ev := NewEvent(EventSendMessage, SendMessagePayload{ConversationID: "dm:a:b", Body: "hi"})

	var p SendMessagePayload
	require.NoError(t, ev.DecodePayload(&p))
	assert.Equal(t, "dm:a:b", p.ConversationID)
	assert.Equal(t, "hi", p.Body)
}
