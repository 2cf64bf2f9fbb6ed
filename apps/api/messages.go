package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/localmart/realtime/pkg/apperr"
	"github.com/localmart/realtime/pkg/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// listMessages pages through a conversation's history, newest first, with
// each message's full readBy record attached.
func (s *server) listMessages(c *gin.Context) {
	claims := currentUser(c)
	conversationID := c.Param("id")

	if !model.IsParticipant(conversationID, claims.UserID) {
		s.fail(c, apperr.E(apperr.Forbidden, "not a participant of %s", conversationID))
		return
	}

	limit := defaultPageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.fail(c, apperr.E(apperr.InvalidArgument, "bad limit %q", v))
			return
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		limit = n
	}

	var before int64
	if v := c.Query("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.fail(c, apperr.E(apperr.InvalidArgument, "bad before %q", v))
			return
		}
		before = n
	}

	ctx := c.Request.Context()
	query := s.session.Query(
		`SELECT conversation_id, id, sender_id, body, created_at FROM messages WHERE conversation_id = ? LIMIT ?`,
		conversationID, limit)
	if before > 0 {
		query = s.session.Query(
			`SELECT conversation_id, id, sender_id, body, created_at FROM messages WHERE conversation_id = ? AND id < ? LIMIT ?`,
			conversationID, before, limit)
	}
	iter := query.WithContext(ctx).Iter()

	var messages []model.Message
	var m model.Message
	for iter.Scan(&m.ConversationID, &m.ID, &m.SenderID, &m.Body, &m.CreatedAt) {
		messages = append(messages, m)
		m = model.Message{}
	}
	if err := iter.Close(); err != nil {
		s.fail(c, apperr.Wrap(apperr.Transient, err, "read history"))
		return
	}

	for i := range messages {
		readIter := s.session.Query(
			`SELECT user_id, read_at FROM read_receipts WHERE message_id = ?`,
			messages[i].ID).WithContext(ctx).Iter()
		var r model.ReadReceipt
		for readIter.Scan(&r.UserID, &r.ReadAt) {
			messages[i].ReadBy = append(messages[i].ReadBy, r)
		}
		if err := readIter.Close(); err != nil {
			s.fail(c, apperr.Wrap(apperr.Transient, err, "read receipts"))
			return
		}
	}

	c.JSON(http.StatusOK, messages)
}
