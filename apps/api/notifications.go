package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localmart/realtime/pkg/apperr"
	"github.com/localmart/realtime/pkg/model"
)

func (s *server) listNotifications(c *gin.Context) {
	claims := currentUser(c)

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

	notifications, err := s.notify.List(c.Request.Context(), claims.UserID, before, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (s *server) notificationUnreadCount(c *gin.Context) {
	claims := currentUser(c)

	count, err := s.notify.UnreadCount(c.Request.Context(), claims.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (s *server) markNotificationRead(c *gin.Context) {
	claims := currentUser(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.fail(c, apperr.E(apperr.InvalidArgument, "bad notification id %q", c.Param("id")))
		return
	}

	ctx := c.Request.Context()
	changed, err := s.notify.MarkRead(ctx, claims.UserID, id, time.Now().UTC())
	if err != nil {
		s.fail(c, err)
		return
	}
	if changed {
		ev := model.NewEvent(model.EventNotificationRead, model.NotificationReadPayload{NotificationID: id})
		ev.TargetUserID = claims.UserID
		if err := s.publish(ctx, ev, claims.UserID); err != nil {
			// The flip is durable; a missed push self-corrects on the
			// next refetch.
			s.logger.Warn("failed to push notificationRead")
		}
	}
	c.Status(http.StatusOK)
}

func (s *server) markAllNotificationsRead(c *gin.Context) {
	claims := currentUser(c)
	ctx := c.Request.Context()

	flipped, err := s.notify.MarkAllRead(ctx, claims.UserID, time.Now().UTC())
	if err != nil {
		s.fail(c, err)
		return
	}
	for _, id := range flipped {
		ev := model.NewEvent(model.EventNotificationRead, model.NotificationReadPayload{NotificationID: id})
		ev.TargetUserID = claims.UserID
		if err := s.publish(ctx, ev, claims.UserID); err != nil {
			s.logger.Warn("failed to push notificationRead")
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"marked": len(flipped)})
}

type createNotificationRequest struct {
	TargetUserID string                 `json:"target_user_id" binding:"required"`
	Type         model.NotificationType `json:"type" binding:"required"`
	Title        string                 `json:"title" binding:"required"`
	Body         string                 `json:"body"`
	ActionURL    string                 `json:"action_url"`
}

// createNotification is the ingress for domain events elsewhere in the
// product (orders, reviews, verification). Only service-role credentials
// may call it.
func (s *server) createNotification(c *gin.Context) {
	claims := currentUser(c)
	if claims.Role != "service" && claims.Role != "admin" {
		s.fail(c, apperr.E(apperr.Forbidden, "service credentials required"))
		return
	}

	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperr.E(apperr.InvalidArgument, "missing required fields"))
		return
	}
	if !model.ValidNotificationType(req.Type) {
		s.fail(c, apperr.E(apperr.InvalidArgument, "unknown notification type %q", req.Type))
		return
	}

	n := model.Notification{
		ID:           s.ids.Generate(),
		TargetUserID: req.TargetUserID,
		Type:         req.Type,
		Title:        req.Title,
		Body:         req.Body,
		ActionURL:    req.ActionURL,
		CreatedAt:    time.Now().UTC(),
	}

	ctx := c.Request.Context()
	if err := s.notify.Insert(ctx, n); err != nil {
		s.fail(c, err)
		return
	}

	ev := model.NewEvent(model.EventNewNotification, n)
	ev.TargetUserID = n.TargetUserID
	if err := s.publish(ctx, ev, n.TargetUserID); err != nil {
		s.logger.Warn("failed to push newNotification")
	}
	c.JSON(http.StatusCreated, n)
}
