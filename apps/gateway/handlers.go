package main

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/apperr"
	"github.com/localmart/realtime/pkg/model"
)

// receiptScanLimit bounds how far back markMessageRead looks for messages
// the reader has not receipted yet. Receipts are monotonic, so anything
// older than the first receipted message is already covered.
const receiptScanLimit = 50

const actionTimeout = 5 * time.Second

func (h *Hub) handleEvent(c *Client, ev model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	var err error
	switch ev.Type {
	case model.EventJoinConversations:
		err = h.handleJoinAll(ctx, c)
	case model.EventJoinConversation:
		err = h.handleJoin(ctx, c, ev)
	case model.EventLeaveConversation:
		err = h.handleLeave(ctx, c, ev)
	case model.EventSendMessage:
		err = h.handleSendMessage(ctx, c, ev)
	case model.EventMarkMessageRead:
		err = h.handleMarkMessageRead(ctx, c, ev)
	case model.EventTyping:
		err = h.handleTyping(ctx, c, ev)
	case model.EventJoinUser:
		err = h.handleJoinUser(c, ev)
	case model.EventMarkNotificationRead:
		err = h.handleMarkNotificationRead(ctx, c, ev)
	default:
		err = apperr.E(apperr.InvalidArgument, "unknown event %q", ev.Type)
	}

	if err != nil {
		h.logger.Info("action failed",
			zap.String("action", ev.Type),
			zap.String("user", c.UserID),
			zap.Error(err))
		h.sendError(c, ev.Type, string(apperr.CodeOf(err)), err.Error())
	}
}

// requireParticipant is the access check for every conversation-scoped
// action: the id must parse and the caller must be one of the two sides.
func requireParticipant(conversationID, userID string) error {
	if _, _, err := model.Participants(conversationID); err != nil {
		return apperr.E(apperr.InvalidArgument, "malformed conversation id %q", conversationID)
	}
	if !model.IsParticipant(conversationID, userID) {
		return apperr.E(apperr.Forbidden, "not a participant of %s", conversationID)
	}
	return nil
}

func (h *Hub) handleJoinAll(ctx context.Context, c *Client) error {
	ids, err := h.store.conversationIDs(ctx, c.UserID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if h.registry.Join(c, id) {
			h.presence.add(ctx, id, c.UserID)
		}
	}
	return nil
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, ev model.Event) error {
	var p model.JoinConversationPayload
	if err := ev.DecodePayload(&p); err != nil {
		return apperr.E(apperr.InvalidArgument, "bad joinConversation payload")
	}
	if err := requireParticipant(p.ConversationID, c.UserID); err != nil {
		return err
	}
	if h.registry.Join(c, p.ConversationID) {
		h.presence.add(ctx, p.ConversationID, c.UserID)
	}
	return nil
}

func (h *Hub) handleLeave(ctx context.Context, c *Client, ev model.Event) error {
	var p model.JoinConversationPayload
	if err := ev.DecodePayload(&p); err != nil {
		return apperr.E(apperr.InvalidArgument, "bad leaveConversation payload")
	}
	if h.registry.Leave(c, p.ConversationID) {
		h.presence.remove(ctx, p.ConversationID, c.UserID)
	}
	return nil
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, ev model.Event) error {
	var p model.SendMessagePayload
	if err := ev.DecodePayload(&p); err != nil {
		return apperr.E(apperr.InvalidArgument, "bad sendMessage payload")
	}
	body := strings.TrimSpace(p.Body)
	if body == "" {
		return apperr.E(apperr.InvalidArgument, "empty message")
	}
	if err := requireParticipant(p.ConversationID, c.UserID); err != nil {
		return err
	}

	msg := model.Message{
		ID:             h.ids.Generate(),
		ConversationID: p.ConversationID,
		SenderID:       c.UserID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}

	out := model.NewEvent(model.EventNewMessage, msg)
	out.Room = p.ConversationID
	out.OriginUserID = c.UserID
	// The sender's own connections receive newMessage too: that is the
	// delivery confirmation, so OriginConnID stays empty here.
	if err := h.publish(ctx, out, p.ConversationID); err != nil {
		return apperr.Wrap(apperr.Transient, err, "failed to send message")
	}
	return nil
}

func (h *Hub) handleMarkMessageRead(ctx context.Context, c *Client, ev model.Event) error {
	var p model.MarkMessageReadPayload
	if err := ev.DecodePayload(&p); err != nil {
		return apperr.E(apperr.InvalidArgument, "bad markMessageRead payload")
	}
	if err := requireParticipant(p.ConversationID, c.UserID); err != nil {
		return err
	}

	msgs, err := h.store.recentMessages(ctx, p.ConversationID, receiptScanLimit)
	if err != nil {
		return err
	}
	pending, err := unreceiptedOldestFirst(msgs, c.UserID, func(messageID int64) (bool, error) {
		return h.store.hasReceipt(ctx, messageID, c.UserID)
	})
	if err != nil {
		return err
	}

	// Receipts are written oldest-first so a failure partway through
	// leaves a receipted prefix of the older messages. The retry's
	// stop-at-first-receipt scan above then still reaches everything
	// newer that was missed.
	readAt := time.Now().UTC()
	for _, msg := range pending {
		if err := h.store.insertReceipt(ctx, msg.ID, c.UserID, readAt); err != nil {
			return err
		}
		readBy, err := h.store.readBy(ctx, msg.ID)
		if err != nil {
			return err
		}

		push := model.NewEvent(model.EventMessageRead, model.MessageReadPayload{
			MessageID:      msg.ID,
			ConversationID: p.ConversationID,
			ReadBy:         readBy,
			ReadAt:         readAt,
		})
		push.TargetUserID = msg.SenderID
		push.OriginUserID = c.UserID
		if err := h.publish(ctx, push, p.ConversationID); err != nil {
			return apperr.Wrap(apperr.Transient, err, "failed to propagate read receipt")
		}
	}
	return nil
}

// unreceiptedOldestFirst walks msgs (newest first, as the history query
// returns them) collecting the reader's unreceipted messages, and stops at
// the first message already receipted: receipts never disappear and are
// written oldest-first, so everything older is covered. The result comes
// back oldest-first, the order receipts must be inserted in to keep that
// stop condition sound across partial failures.
func unreceiptedOldestFirst(msgs []model.Message, readerID string, receipted func(messageID int64) (bool, error)) ([]model.Message, error) {
	var pending []model.Message
	for _, msg := range msgs {
		if msg.SenderID == readerID {
			continue
		}
		already, err := receipted(msg.ID)
		if err != nil {
			return nil, err
		}
		if already {
			break
		}
		pending = append(pending, msg)
	}
	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}
	return pending, nil
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, ev model.Event) error {
	var p model.TypingPayload
	if err := ev.DecodePayload(&p); err != nil {
		return apperr.E(apperr.InvalidArgument, "bad typing payload")
	}
	if err := requireParticipant(p.ConversationID, c.UserID); err != nil {
		return err
	}

	out := model.NewEvent(model.EventUserTyping, model.UserTypingPayload{
		ConversationID: p.ConversationID,
		UserID:         c.UserID,
		UserName:       c.UserName,
		IsTyping:       p.IsTyping,
		Timestamp:      time.Now().UTC(),
	})
	out.Room = p.ConversationID
	out.OriginUserID = c.UserID
	out.OriginConnID = c.ID
	return h.publish(ctx, out, p.ConversationID)
}

func (h *Hub) handleJoinUser(c *Client, ev model.Event) error {
	var p model.JoinUserPayload
	if err := ev.DecodePayload(&p); err != nil {
		return apperr.E(apperr.InvalidArgument, "bad joinUser payload")
	}
	if p.UserID != c.UserID {
		return apperr.E(apperr.Forbidden, "cannot join another user's channel")
	}
	// Every authenticated connection is already on its own user channel;
	// re-joining is an idempotent no-op.
	return nil
}

func (h *Hub) handleMarkNotificationRead(ctx context.Context, c *Client, ev model.Event) error {
	var p model.MarkNotificationReadPayload
	if err := ev.DecodePayload(&p); err != nil {
		return apperr.E(apperr.InvalidArgument, "bad markNotificationRead payload")
	}

	changed, err := h.notify.MarkRead(ctx, c.UserID, p.NotificationID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !changed {
		// Monotonic read state: already read is a no-op success.
		return nil
	}

	push := model.NewEvent(model.EventNotificationRead, model.NotificationReadPayload{
		NotificationID: p.NotificationID,
	})
	push.TargetUserID = c.UserID
	push.OriginConnID = c.ID // the tab that marked it already knows
	return h.publish(ctx, push, c.UserID)
}
