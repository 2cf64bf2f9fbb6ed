// Package notify persists notifications and their per-user unread counter.
// Read state only ever transitions unread -> read; marking an already-read
// notification is a no-op, which is what makes retries and cross-tab races
// harmless.
package notify

import (
	"context"
	"time"

	"github.com/gocql/gocql"

	"github.com/localmart/realtime/pkg/apperr"
	"github.com/localmart/realtime/pkg/db"
	"github.com/localmart/realtime/pkg/model"
)

type Store struct {
	session *db.Session
}

func NewStore(session *db.Session) *Store {
	return &Store{session: session}
}

// Insert persists a new notification and bumps the user's unread counter.
func (s *Store) Insert(ctx context.Context, n model.Notification) error {
	q := `INSERT INTO notifications (user_id, id, type, title, body, action_url, read, read_at, created_at) VALUES (?, ?, ?, ?, ?, ?, false, null, ?)`
	if err := s.session.Query(q, n.TargetUserID, n.ID, string(n.Type), n.Title, n.Body, n.ActionURL, n.CreatedAt).WithContext(ctx).Exec(); err != nil {
		return apperr.Wrap(apperr.Transient, err, "insert notification")
	}
	q = `UPDATE notification_counters SET unread_count = unread_count + 1 WHERE user_id = ?`
	if err := s.session.Query(q, n.TargetUserID).WithContext(ctx).Exec(); err != nil {
		return apperr.Wrap(apperr.Transient, err, "increment notification counter")
	}
	return nil
}

// Get loads one notification owned by the user.
func (s *Store) Get(ctx context.Context, userID string, id int64) (model.Notification, error) {
	var n model.Notification
	var readAt time.Time
	err := s.session.Query(
		`SELECT user_id, id, type, title, body, action_url, read, read_at, created_at FROM notifications WHERE user_id = ? AND id = ?`,
		userID, id).WithContext(ctx).
		Scan(&n.TargetUserID, &n.ID, &n.Type, &n.Title, &n.Body, &n.ActionURL, &n.Read, &readAt, &n.CreatedAt)
	if err == gocql.ErrNotFound {
		return n, apperr.E(apperr.NotFound, "notification %d not found", id)
	}
	if err != nil {
		return n, apperr.Wrap(apperr.Transient, err, "read notification")
	}
	if !readAt.IsZero() {
		n.ReadAt = &readAt
	}
	return n, nil
}

// List pages through the user's notifications, newest first. before=0 means
// start from the newest.
func (s *Store) List(ctx context.Context, userID string, before int64, limit int) ([]model.Notification, error) {
	var iter *gocql.Iter
	if before > 0 {
		iter = s.session.Query(
			`SELECT user_id, id, type, title, body, action_url, read, read_at, created_at FROM notifications WHERE user_id = ? AND id < ? LIMIT ?`,
			userID, before, limit).WithContext(ctx).Iter()
	} else {
		iter = s.session.Query(
			`SELECT user_id, id, type, title, body, action_url, read, read_at, created_at FROM notifications WHERE user_id = ? LIMIT ?`,
			userID, limit).WithContext(ctx).Iter()
	}

	var out []model.Notification
	for {
		var n model.Notification
		var readAt time.Time
		if !iter.Scan(&n.TargetUserID, &n.ID, &n.Type, &n.Title, &n.Body, &n.ActionURL, &n.Read, &readAt, &n.CreatedAt) {
			break
		}
		if !readAt.IsZero() {
			n.ReadAt = &readAt
		}
		out = append(out, n)
	}
	if err := iter.Close(); err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "list notifications")
	}
	return out, nil
}

// UnreadCount reads the user's unread counter; a missing row is zero.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.session.Query(
		`SELECT unread_count FROM notification_counters WHERE user_id = ?`,
		userID).WithContext(ctx).Scan(&count)
	if err == gocql.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.Transient, err, "read notification counter")
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

// MarkRead flips one notification to read and decrements the counter.
// Reports whether the flag actually changed.
func (s *Store) MarkRead(ctx context.Context, userID string, id int64, readAt time.Time) (bool, error) {
	n, err := s.Get(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if n.Read {
		return false, nil
	}
	err = s.session.Query(
		`UPDATE notifications SET read = true, read_at = ? WHERE user_id = ? AND id = ?`,
		readAt, userID, id).WithContext(ctx).Exec()
	if err != nil {
		return false, apperr.Wrap(apperr.Transient, err, "mark notification read")
	}
	err = s.session.Query(
		`UPDATE notification_counters SET unread_count = unread_count - 1 WHERE user_id = ?`,
		userID).WithContext(ctx).Exec()
	if err != nil {
		return false, apperr.Wrap(apperr.Transient, err, "decrement notification counter")
	}
	return true, nil
}

// MarkAllRead flips every unread notification and zeroes the counter by
// deleting its row. Safe to call when everything is already read.
func (s *Store) MarkAllRead(ctx context.Context, userID string, readAt time.Time) ([]int64, error) {
	iter := s.session.Query(
		`SELECT id, read FROM notifications WHERE user_id = ?`,
		userID).WithContext(ctx).Iter()

	var unreadIDs []int64
	var id int64
	var read bool
	for iter.Scan(&id, &read) {
		if !read {
			unreadIDs = append(unreadIDs, id)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "scan notifications")
	}

	for _, id := range unreadIDs {
		err := s.session.Query(
			`UPDATE notifications SET read = true, read_at = ? WHERE user_id = ? AND id = ?`,
			readAt, userID, id).WithContext(ctx).Exec()
		if err != nil {
			return nil, apperr.Wrap(apperr.Transient, err, "mark notification read")
		}
	}

	// Counter reset works by row delete; a missing row reads as zero.
	err := s.session.Query(
		`DELETE FROM notification_counters WHERE user_id = ?`,
		userID).WithContext(ctx).Exec()
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "reset notification counter")
	}
	return unreadIDs, nil
}
