package model

import (
	"fmt"
	"strings"
	"time"
)

const conversationPrefix = "dm:"

// Conversation is the denormalized per-user view of a 1:1 conversation.
// The id is deterministic for a pair of users, so a conversation exists as
// soon as either side refers to it; rows materialize on first message.
type Conversation struct {
	ID                string    `json:"id"`
	OtherUserID       string    `json:"other_user_id"`
	LastMessageID     int64     `json:"last_message_id,omitempty"`
	LastMessageBody   string    `json:"last_message_body,omitempty"`
	LastMessageSender string    `json:"last_message_sender,omitempty"`
	LastActivity      time.Time `json:"last_activity"`
	UnreadCount       int64     `json:"unread_count"`
}

const maxUserIDLen = 64

// ValidUserID reports whether id can safely be embedded in a conversation
// id. The ":"-delimited id format means a user id must never contain ":",
// so ids are restricted to letters, digits, ".", "-" and "_".
func ValidUserID(id string) bool {
	if id == "" || len(id) > maxUserIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// ConversationID returns the canonical id for a 1:1 conversation between two
// users. User ids are sorted so both sides compute the same id.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return conversationPrefix + a + ":" + b
}

// Participants parses a conversation id back into its two user ids.
func Participants(conversationID string) (string, string, error) {
	if !strings.HasPrefix(conversationID, conversationPrefix) {
		return "", "", fmt.Errorf("malformed conversation id %q", conversationID)
	}
	parts := strings.Split(conversationID, ":")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("malformed conversation id %q", conversationID)
	}
	return parts[1], parts[2], nil
}

// IsParticipant reports whether userID is one of the conversation's two
// participants. Malformed ids are never participated in.
func IsParticipant(conversationID, userID string) bool {
	a, b, err := Participants(conversationID)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}

// OtherParticipant returns the participant that is not userID.
func OtherParticipant(conversationID, userID string) (string, error) {
	a, b, err := Participants(conversationID)
	if err != nil {
		return "", err
	}
	switch userID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", fmt.Errorf("user %s is not in conversation %s", userID, conversationID)
}
