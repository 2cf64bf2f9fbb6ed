// Package unread owns the authoritative per-(user, conversation) unread
// counters. The aggregate total a user sees is always computed as the sum of
// their per-conversation counters; it is never stored or mutated on its own.
package unread

import "context"

// Store persists counters. Implementations must make Increment and Reset
// atomic per (user, conversation) key.
type Store interface {
	Increment(ctx context.Context, userID, conversationID string) error
	// Reset zeroes one counter. Resetting an absent or already-zero
	// counter succeeds.
	Reset(ctx context.Context, userID, conversationID string) error
	Counts(ctx context.Context, userID string) (map[string]int64, error)
}

// Counts is a user's unread state: one counter per conversation plus the
// derived total.
type Counts struct {
	PerConversation map[string]int64 `json:"per_conversation"`
	Total           int64            `json:"total"`
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// RecordDelivery applies the delivery rule for one broadcast message: every
// participant other than the sender whose connections are not joined to the
// conversation room gets their counter bumped. "Delivered while viewing" is
// not unread, so viewing participants are skipped even though they still
// receive the message event. Returns the users whose counters changed.
func (s *Service) RecordDelivery(ctx context.Context, conversationID, senderID string, participants []string, viewing func(userID string) bool) ([]string, error) {
	var bumped []string
	for _, userID := range participants {
		if userID == senderID {
			continue
		}
		if viewing != nil && viewing(userID) {
			continue
		}
		if err := s.store.Increment(ctx, userID, conversationID); err != nil {
			return bumped, err
		}
		bumped = append(bumped, userID)
	}
	return bumped, nil
}

// MarkRead zeroes the user's counter for one conversation. Idempotent.
func (s *Service) MarkRead(ctx context.Context, userID, conversationID string) error {
	return s.store.Reset(ctx, userID, conversationID)
}

// Counts returns the user's per-conversation counters and their sum.
func (s *Service) Counts(ctx context.Context, userID string) (Counts, error) {
	per, err := s.store.Counts(ctx, userID)
	if err != nil {
		return Counts{}, err
	}
	c := Counts{PerConversation: per}
	for _, n := range per {
		c.Total += n
	}
	return c, nil
}
