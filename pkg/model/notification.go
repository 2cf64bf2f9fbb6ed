package model

import "time"

type NotificationType string

const (
	NotifOrderPlaced          NotificationType = "order-placed"
	NotifOrderConfirmed       NotificationType = "order-confirmed"
	NotifOrderCompleted       NotificationType = "order-completed"
	NotifOrderCancelled       NotificationType = "order-cancelled"
	NotifPaymentReceived      NotificationType = "payment-received"
	NotifReviewReceived       NotificationType = "review-received"
	NotifBusinessVerified     NotificationType = "business-verified"
	NotifVerificationRejected NotificationType = "verification-rejected"
	NotifMessageReceived      NotificationType = "message-received"
	NotifOther                NotificationType = "other"
)

// ValidNotificationType reports whether t is one of the known types.
func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotifOrderPlaced, NotifOrderConfirmed, NotifOrderCompleted,
		NotifOrderCancelled, NotifPaymentReceived, NotifReviewReceived,
		NotifBusinessVerified, NotifVerificationRejected,
		NotifMessageReceived, NotifOther:
		return true
	}
	return false
}

// Notification is created by domain events elsewhere in the product and
// pushed to the target user's live connections. Read state is the only
// mutable field and only ever flips unread -> read.
type Notification struct {
	ID           int64            `json:"id"`
	TargetUserID string           `json:"target_user_id"`
	Type         NotificationType `json:"type"`
	Title        string           `json:"title"`
	Body         string           `json:"body"`
	ActionURL    string           `json:"action_url,omitempty"`
	Read         bool             `json:"read"`
	ReadAt       *time.Time       `json:"read_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
