// Package reconciler merges REST-fetched snapshots with pushed events into a
// single de-duplicated local view for one device. Events may arrive more
// than once and out of order relative to snapshots; everything is keyed by
// id so duplicate application is a no-op, and authoritative counters from
// the server overwrite whatever the local badge model accumulated.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/localmart/realtime/pkg/model"
	"github.com/localmart/realtime/pkg/typing"
	"github.com/localmart/realtime/pkg/unread"
)

type State struct {
	mu     sync.Mutex
	userID string

	conversations map[string]model.Conversation
	messages      map[string]map[int64]model.Message
	notifications map[int64]model.Notification

	// Local badge model; corrected from the server on every snapshot.
	badgeStore  *unread.MemoryStore
	badges      *unread.Service
	notifUnread int64

	typing *typing.Tracker

	openConversation string
	joinedRooms      map[string]bool

	lastError string
}

func New(userID string) *State {
	store := unread.NewMemoryStore()
	return &State{
		userID:        userID,
		conversations: make(map[string]model.Conversation),
		messages:      make(map[string]map[int64]model.Message),
		notifications: make(map[int64]model.Notification),
		badgeStore:    store,
		badges:        unread.NewService(store),
		typing:        typing.NewTracker(),
		joinedRooms:   make(map[string]bool),
	}
}

// ApplyEvent folds one pushed event into local state. Safe to call with the
// same event any number of times.
func (s *State) ApplyEvent(ev model.Event) error {
	switch ev.Type {
	case model.EventNewMessage:
		var msg model.Message
		if err := ev.DecodePayload(&msg); err != nil {
			return err
		}
		s.applyMessage(msg)
	case model.EventMessageRead:
		var p model.MessageReadPayload
		if err := ev.DecodePayload(&p); err != nil {
			return err
		}
		s.applyMessageRead(p)
	case model.EventUserTyping:
		var p model.UserTypingPayload
		if err := ev.DecodePayload(&p); err != nil {
			return err
		}
		if p.IsTyping {
			s.typing.Set(p.ConversationID, p.UserID, p.UserName)
		} else {
			s.typing.Clear(p.ConversationID, p.UserID)
		}
	case model.EventNewNotification:
		var n model.Notification
		if err := ev.DecodePayload(&n); err != nil {
			return err
		}
		s.applyNotification(n)
	case model.EventNotificationRead:
		var p model.NotificationReadPayload
		if err := ev.DecodePayload(&p); err != nil {
			return err
		}
		s.applyNotificationRead(p.NotificationID)
	case model.EventError:
		var p model.ErrorPayload
		if err := ev.DecodePayload(&p); err != nil {
			return err
		}
		s.mu.Lock()
		s.lastError = p.Message
		s.mu.Unlock()
	}
	return nil
}

func (s *State) applyMessage(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.messages[msg.ConversationID]
	if byID == nil {
		byID = make(map[int64]model.Message)
		s.messages[msg.ConversationID] = byID
	}
	if _, seen := byID[msg.ID]; seen {
		// At-least-once delivery; already merged.
		return
	}
	byID[msg.ID] = msg

	conv := s.conversations[msg.ConversationID]
	conv.ID = msg.ConversationID
	if conv.OtherUserID == "" {
		if other, err := model.OtherParticipant(msg.ConversationID, s.userID); err == nil {
			conv.OtherUserID = other
		}
	}
	if msg.ID > conv.LastMessageID {
		conv.LastMessageID = msg.ID
		conv.LastMessageBody = msg.Body
		conv.LastMessageSender = msg.SenderID
		conv.LastActivity = msg.CreatedAt
	}
	s.conversations[msg.ConversationID] = conv

	// Receiving a message clears the sender's typing entry.
	s.typing.Clear(msg.ConversationID, msg.SenderID)

	if msg.SenderID != s.userID && msg.ConversationID != s.openConversation {
		_ = s.badgeStore.Increment(context.Background(), s.userID, msg.ConversationID)
	}
}

func (s *State) applyMessageRead(p model.MessageReadPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.messages[p.ConversationID]
	msg, ok := byID[p.MessageID]
	if !ok {
		return
	}
	for _, r := range p.ReadBy {
		if !msg.HasReader(r.UserID) {
			msg.ReadBy = append(msg.ReadBy, r)
		}
	}
	byID[p.MessageID] = msg
}

func (s *State) applyNotification(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.notifications[n.ID]; seen {
		return
	}
	s.notifications[n.ID] = n
	if !n.Read {
		s.notifUnread++
	}
}

func (s *State) applyNotificationRead(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.Read {
		return
	}
	n.Read = true
	now := time.Now()
	n.ReadAt = &now
	s.notifications[id] = n
	if s.notifUnread > 0 {
		s.notifUnread--
	}
}
