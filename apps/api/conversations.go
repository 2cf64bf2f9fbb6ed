package main

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/localmart/realtime/pkg/apperr"
	"github.com/localmart/realtime/pkg/model"
)

// listConversations returns the user's conversations with last-message
// summaries and their authoritative unread counters attached.
func (s *server) listConversations(c *gin.Context) {
	claims := currentUser(c)

	iter := s.session.Query(
		`SELECT conversation_id, other_user_id, last_message_id, last_message_body, last_message_sender, last_activity FROM user_conversations WHERE user_id = ?`,
		claims.UserID).WithContext(c.Request.Context()).Iter()

	var conversations []model.Conversation
	var conv model.Conversation
	for iter.Scan(&conv.ID, &conv.OtherUserID, &conv.LastMessageID, &conv.LastMessageBody, &conv.LastMessageSender, &conv.LastActivity) {
		conversations = append(conversations, conv)
	}
	if err := iter.Close(); err != nil {
		s.fail(c, apperr.Wrap(apperr.Transient, err, "list conversations"))
		return
	}

	counts, err := s.unread.Counts(c.Request.Context(), claims.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	for i := range conversations {
		conversations[i].UnreadCount = counts.PerConversation[conversations[i].ID]
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastActivity.After(conversations[j].LastActivity)
	})

	c.JSON(http.StatusOK, conversations)
}

type startConversationRequest struct {
	OtherUserID string `json:"other_user_id" binding:"required"`
}

// startConversation resolves the deterministic conversation id for a pair
// of users. No row is written; the conversation materializes on first
// message.
func (s *server) startConversation(c *gin.Context) {
	claims := currentUser(c)

	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperr.E(apperr.InvalidArgument, "other_user_id is required"))
		return
	}
	if !model.ValidUserID(req.OtherUserID) {
		s.fail(c, apperr.E(apperr.InvalidArgument, "invalid other_user_id"))
		return
	}
	if req.OtherUserID == claims.UserID {
		s.fail(c, apperr.E(apperr.InvalidArgument, "cannot start a conversation with yourself"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": model.ConversationID(claims.UserID, req.OtherUserID),
	})
}

// markConversationRead zeroes the caller's unread counter for one
// conversation. Idempotent: already-zero succeeds.
func (s *server) markConversationRead(c *gin.Context) {
	claims := currentUser(c)
	conversationID := c.Param("id")

	if !model.IsParticipant(conversationID, claims.UserID) {
		s.fail(c, apperr.E(apperr.Forbidden, "not a participant of %s", conversationID))
		return
	}
	if err := s.unread.MarkRead(c.Request.Context(), claims.UserID, conversationID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// unreadCounts returns the caller's per-conversation counters plus the
// derived total. Clients refetch this after reconnect to drop drift.
func (s *server) unreadCounts(c *gin.Context) {
	claims := currentUser(c)

	counts, err := s.unread.Counts(c.Request.Context(), claims.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// roomViewers lists the users currently viewing a conversation.
func (s *server) roomViewers(c *gin.Context) {
	claims := currentUser(c)
	roomID := c.Param("id")

	if !model.IsParticipant(roomID, claims.UserID) {
		s.fail(c, apperr.E(apperr.Forbidden, "not a participant of %s", roomID))
		return
	}
	viewers, err := s.rdb.SMembers(c.Request.Context(), "room:"+roomID+":viewers").Result()
	if err != nil {
		s.fail(c, apperr.Wrap(apperr.Transient, err, "fetch viewers"))
		return
	}
	c.JSON(http.StatusOK, viewers)
}
