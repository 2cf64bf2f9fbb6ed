package model

import (
	"encoding/json"
	"time"
)

// Client -> server actions.
const (
	EventJoinConversations    = "joinConversations"
	EventJoinConversation     = "joinConversation"
	EventLeaveConversation    = "leaveConversation"
	EventSendMessage          = "sendMessage"
	EventMarkMessageRead      = "markMessageRead"
	EventTyping               = "typing"
	EventJoinUser             = "joinUser"
	EventMarkNotificationRead = "markNotificationRead"
)

// Server -> client pushes.
const (
	EventNewMessage       = "newMessage"
	EventMessageRead      = "messageRead"
	EventUserTyping       = "userTyping"
	EventNewNotification  = "newNotification"
	EventNotificationRead = "notificationRead"
	EventError            = "error"
)

// Event is the wire envelope for both the WebSocket frames and the Kafka
// records behind them. Routing fields are only populated on Kafka records:
// Room targets every connection joined to a conversation room, TargetUserID
// targets every connection of one user. OriginConnID lets fan-out skip the
// connection that triggered the event.
type Event struct {
	Type         string          `json:"event"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Room         string          `json:"room,omitempty"`
	TargetUserID string          `json:"target_user_id,omitempty"`
	OriginUserID string          `json:"origin_user_id,omitempty"`
	OriginConnID string          `json:"origin_conn_id,omitempty"`
}

// NewEvent marshals payload into an envelope. Marshal failures are
// programming errors on our own types, so they panic rather than return.
func NewEvent(eventType string, payload any) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic("model: unmarshalable event payload: " + err.Error())
	}
	return Event{Type: eventType, Payload: raw}
}

// DecodePayload unmarshals the envelope payload into v.
func (e Event) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

type SendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Body           string `json:"body"`
}

type JoinConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type MarkMessageReadPayload struct {
	ConversationID string `json:"conversation_id"`
}

type MessageReadPayload struct {
	MessageID      int64         `json:"message_id"`
	ConversationID string        `json:"conversation_id"`
	ReadBy         []ReadReceipt `json:"read_by"`
	ReadAt         time.Time     `json:"read_at"`
}

type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

type UserTypingPayload struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	IsTyping       bool      `json:"is_typing"`
	Timestamp      time.Time `json:"timestamp"`
}

type JoinUserPayload struct {
	UserID string `json:"user_id"`
}

type MarkNotificationReadPayload struct {
	NotificationID int64 `json:"notification_id"`
}

type NotificationReadPayload struct {
	NotificationID int64 `json:"notification_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Action is the client event that failed, e.g. "sendMessage".
	Action string `json:"action,omitempty"`
}
