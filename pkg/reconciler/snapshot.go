package reconciler

import (
	"context"
	"sort"

	"github.com/localmart/realtime/pkg/model"
	"github.com/localmart/realtime/pkg/typing"
	"github.com/localmart/realtime/pkg/unread"
)

// ApplyConversations merges a REST conversations snapshot. The server's
// unread counts are authoritative and replace the local badge model for the
// conversations present in the snapshot.
func (s *State) ApplyConversations(convs []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range convs {
		s.conversations[c.ID] = c
		_ = s.badgeStore.Reset(context.Background(), s.userID, c.ID)
		for i := int64(0); i < c.UnreadCount; i++ {
			_ = s.badgeStore.Increment(context.Background(), s.userID, c.ID)
		}
	}
}

// ApplyMessages merges a history page for a conversation.
func (s *State) ApplyMessages(conversationID string, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.messages[conversationID]
	if byID == nil {
		byID = make(map[int64]model.Message)
		s.messages[conversationID] = byID
	}
	for _, m := range msgs {
		if existing, seen := byID[m.ID]; seen {
			// Keep the richer readBy of the two copies.
			if len(m.ReadBy) < len(existing.ReadBy) {
				continue
			}
		}
		byID[m.ID] = m
	}
}

// ApplyCounts replaces the entire local badge model with the server's
// authoritative counters. This is the drift-correction step after reconnect.
func (s *State) ApplyCounts(c unread.Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	current, _ := s.badgeStore.Counts(ctx, s.userID)
	for conv := range current {
		_ = s.badgeStore.Reset(ctx, s.userID, conv)
	}
	for conv, n := range c.PerConversation {
		for i := int64(0); i < n; i++ {
			_ = s.badgeStore.Increment(ctx, s.userID, conv)
		}
	}
}

// ApplyNotifications merges a notifications page and takes the given unread
// count as authoritative.
func (s *State) ApplyNotifications(notifs []model.Notification, unreadCount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifs {
		s.notifications[n.ID] = n
	}
	s.notifUnread = unreadCount
}

// OpenConversation marks a conversation as the one on screen. Incoming
// messages for it no longer bump the local badge.
func (s *State) OpenConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openConversation = conversationID
}

// CloseConversation clears the on-screen conversation.
func (s *State) CloseConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openConversation = ""
}

// MarkJoined / MarkLeft track room membership so JoinedRooms can replay the
// joins after a reconnect.
func (s *State) MarkJoined(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinedRooms[roomID] = true
}

func (s *State) MarkLeft(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.joinedRooms, roomID)
}

// JoinedRooms returns the rooms this device considers itself joined to.
func (s *State) JoinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.joinedRooms))
	for id := range s.joinedRooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Conversations returns the local conversation list, most recent first.
func (s *State) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// Messages returns a conversation's messages in persisted order.
func (s *State) Messages(conversationID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.messages[conversationID]
	out := make([]model.Message, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Notifications returns the local notification list, newest first.
func (s *State) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// UnreadCount returns the local badge for one conversation.
func (s *State) UnreadCount(conversationID string) int64 {
	c, _ := s.badges.Counts(context.Background(), s.userID)
	return c.PerConversation[conversationID]
}

// UnreadTotal returns the aggregate badge across conversations. Always the
// sum of the per-conversation counts.
func (s *State) UnreadTotal() int64 {
	c, _ := s.badges.Counts(context.Background(), s.userID)
	return c.Total
}

// NotificationUnread returns the unread notification badge.
func (s *State) NotificationUnread() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifUnread
}

// TypingIn returns who is currently typing in a conversation.
func (s *State) TypingIn(conversationID string) []typing.Entry {
	return s.typing.Active(conversationID)
}

// LastError returns the most recent failed-action banner text, clearing it.
func (s *State) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.lastError
	s.lastError = ""
	return msg
}
