package model

import "time"

// Message is one chat message inside a conversation. Immutable once written
// except for ReadBy, which only ever grows.
type Message struct {
	ID             int64         `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Body           string        `json:"body"`
	CreatedAt      time.Time     `json:"created_at"`
	ReadBy         []ReadReceipt `json:"read_by,omitempty"`
}

// ReadReceipt records that a user has observed a message. Entries are
// appended once per user and never removed.
type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// HasReader reports whether the message already carries a receipt for userID.
func (m *Message) HasReader(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
