package unread

import (
	"context"

	"github.com/localmart/realtime/pkg/apperr"
	"github.com/localmart/realtime/pkg/db"
)

// ScyllaStore backs counters with a ScyllaDB counter table. Counter columns
// cannot be assigned, only adjusted, so reset works by deleting the row;
// a missing row reads as zero.
type ScyllaStore struct {
	session *db.Session
}

func NewScyllaStore(session *db.Session) *ScyllaStore {
	return &ScyllaStore{session: session}
}

func (s *ScyllaStore) Increment(ctx context.Context, userID, conversationID string) error {
	q := `UPDATE conversation_counters SET unread_count = unread_count + 1 WHERE user_id = ? AND conversation_id = ?`
	if err := s.session.Query(q, userID, conversationID).WithContext(ctx).Exec(); err != nil {
		return apperr.Wrap(apperr.Transient, err, "increment unread counter")
	}
	return nil
}

func (s *ScyllaStore) Reset(ctx context.Context, userID, conversationID string) error {
	q := `DELETE FROM conversation_counters WHERE user_id = ? AND conversation_id = ?`
	if err := s.session.Query(q, userID, conversationID).WithContext(ctx).Exec(); err != nil {
		return apperr.Wrap(apperr.Transient, err, "reset unread counter")
	}
	return nil
}

func (s *ScyllaStore) Counts(ctx context.Context, userID string) (map[string]int64, error) {
	q := `SELECT conversation_id, unread_count FROM conversation_counters WHERE user_id = ?`
	iter := s.session.Query(q, userID).WithContext(ctx).Iter()

	out := make(map[string]int64)
	var conversationID string
	var count int64
	for iter.Scan(&conversationID, &count) {
		if count > 0 {
			out[conversationID] = count
		}
	}
	if err := iter.Close(); err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "read unread counters")
	}
	return out, nil
}
