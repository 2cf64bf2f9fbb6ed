package main

import (
	"context"
	"time"

	"github.com/gocql/gocql"

	"github.com/localmart/realtime/pkg/apperr"
	"github.com/localmart/realtime/pkg/db"
	"github.com/localmart/realtime/pkg/model"
)

// store is the gateway's slice of the durable state: the reads needed to
// validate actions and the receipt writes that must happen synchronously
// inside an action. Bulk materialization of messages lives in the messaging
// service; notification state lives in pkg/notify.
type store struct {
	session *db.Session
}

// conversationIDs lists the user's active conversations for bulk join.
func (s *store) conversationIDs(ctx context.Context, userID string) ([]string, error) {
	iter := s.session.Query(
		`SELECT conversation_id FROM user_conversations WHERE user_id = ?`,
		userID).WithContext(ctx).Iter()

	var ids []string
	var id string
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "list conversations")
	}
	return ids, nil
}

// recentMessages returns the newest messages of a conversation, newest
// first (the table clusters by id DESC).
func (s *store) recentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	iter := s.session.Query(
		`SELECT conversation_id, id, sender_id, body, created_at FROM messages WHERE conversation_id = ? LIMIT ?`,
		conversationID, limit).WithContext(ctx).Iter()

	var msgs []model.Message
	var m model.Message
	for iter.Scan(&m.ConversationID, &m.ID, &m.SenderID, &m.Body, &m.CreatedAt) {
		msgs = append(msgs, m)
	}
	if err := iter.Close(); err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "read recent messages")
	}
	return msgs, nil
}

// readBy returns the full receipt history of a message.
func (s *store) readBy(ctx context.Context, messageID int64) ([]model.ReadReceipt, error) {
	iter := s.session.Query(
		`SELECT user_id, read_at FROM read_receipts WHERE message_id = ?`,
		messageID).WithContext(ctx).Iter()

	var receipts []model.ReadReceipt
	var r model.ReadReceipt
	for iter.Scan(&r.UserID, &r.ReadAt) {
		receipts = append(receipts, r)
	}
	if err := iter.Close(); err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "read receipts")
	}
	return receipts, nil
}

// hasReceipt reports whether the reader already receipted the message.
func (s *store) hasReceipt(ctx context.Context, messageID int64, userID string) (bool, error) {
	var readAt time.Time
	err := s.session.Query(
		`SELECT read_at FROM read_receipts WHERE message_id = ? AND user_id = ?`,
		messageID, userID).WithContext(ctx).Scan(&readAt)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.Transient, err, "check receipt")
	}
	return true, nil
}

// insertReceipt appends (reader, readAt) to a message's read history. An
// insert for an existing (message, user) pair overwrites the same row, so
// re-marking is a no-op and the history never shrinks.
func (s *store) insertReceipt(ctx context.Context, messageID int64, userID string, readAt time.Time) error {
	err := s.session.Query(
		`INSERT INTO read_receipts (message_id, user_id, read_at) VALUES (?, ?, ?)`,
		messageID, userID, readAt).WithContext(ctx).Exec()
	if err != nil {
		return apperr.Wrap(apperr.Transient, err, "insert receipt")
	}
	return nil
}

