// Package typing holds the ephemeral "is typing" state for conversations.
// Nothing here is persisted: an entry lives for one second past the last
// keystroke unless an explicit stop clears it first.
package typing

import (
	"sync"
	"time"
)

// TTL is how long a typing entry stays alive without re-emission.
const TTL = time.Second

type key struct {
	conversationID string
	userID         string
}

// Entry is one active typing signal.
type Entry struct {
	ConversationID string
	UserID         string
	UserName       string
	ExpiresAt      time.Time
}

// Tracker keeps at most one entry per (conversation, user). Expiry is
// checked on read, so a stopped sweep loop only costs memory, never
// correctness.
type Tracker struct {
	mu      sync.Mutex
	entries map[key]Entry
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[key]Entry),
		now:     time.Now,
	}
}

// NewTrackerWithClock injects a clock for tests.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	t := NewTracker()
	t.now = now
	return t
}

// Set records that the user is typing, replacing any previous entry for the
// same (conversation, user) pair.
func (t *Tracker) Set(conversationID, userID, userName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key{conversationID, userID}] = Entry{
		ConversationID: conversationID,
		UserID:         userID,
		UserName:       userName,
		ExpiresAt:      t.now().Add(TTL),
	}
}

// Clear removes the entry immediately (explicit isTyping=false).
func (t *Tracker) Clear(conversationID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key{conversationID, userID})
}

// IsTyping reports whether the user has a live entry in the conversation.
func (t *Tracker) IsTyping(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key{conversationID, userID}]
	if !ok {
		return false
	}
	if !t.now().Before(e.ExpiresAt) {
		delete(t.entries, key{conversationID, userID})
		return false
	}
	return true
}

// Active returns the live entries for a conversation, dropping expired ones
// as a side effect.
func (t *Tracker) Active(conversationID string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var out []Entry
	for k, e := range t.entries {
		if k.conversationID != conversationID {
			continue
		}
		if !now.Before(e.ExpiresAt) {
			delete(t.entries, k)
			continue
		}
		out = append(out, e)
	}
	return out
}

// Sweep drops every expired entry. Long-lived processes run this on a
// ticker so abandoned conversations do not accumulate entries.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for k, e := range t.entries {
		if !now.Before(e.ExpiresAt) {
			delete(t.entries, k)
		}
	}
}
