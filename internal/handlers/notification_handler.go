package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anonto42/barrierfree/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		userRepository:         userRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor models.UserCompact `json:"actor"`
}

func (h *NotificationHandler) enrichNotifications(ctx context.Context, notifications []models.Notification) []EnrichedNotification {
	enriched := make([]EnrichedNotification, len(notifications))
	userCache := make(map[uint]models.UserCompact)

	for i, n := range notifications {
		enriched[i] = EnrichedNotification{Notification: n}
		if actor, cached := userCache[n.ActorID]; cached {
			enriched[i].Actor = actor
		} else {
			user, err := h.userRepository.GetUserByID(ctx, n.ActorID)
			if err == nil {
				compact := user.ToCompact()
				userCache[n.ActorID] = compact
				enriched[i].Actor = compact
			}
		}
	}
	return enriched
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	page, limit := pageParams(c, 20)
	notifications, total, err := h.notificationRepository.GetByRecipientID(ctx, caller(c).ID(), page, limit)
	if err != nil {
		return fail(c, apperrors.Internal("list notifications", err))
	}
	return paged(c, echo.Map{"notifications": h.enrichNotifications(ctx, notifications)}, page, limit, total)
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	recipientID := caller(c).ID()
	today, yesterday, thisWeek, older, err := h.notificationRepository.GetGrouped(ctx, recipientID)
	if err != nil {
		return fail(c, apperrors.Internal("group notifications", err))
	}

	unreadCount, _ := h.notificationRepository.GetUnreadCount(ctx, recipientID)

	return ok(c, http.StatusOK, echo.Map{
		"notifications": echo.Map{
			"today":     h.enrichNotifications(ctx, today),
			"yesterday": h.enrichNotifications(ctx, yesterday),
			"thisWeek":  h.enrichNotifications(ctx, thisWeek),
			"older":     h.enrichNotifications(ctx, older),
		},
		"unreadCount": unreadCount,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	count, err := h.notificationRepository.GetUnreadCount(c.Request().Context(), caller(c).ID())
	if err != nil {
		return fail(c, apperrors.Internal("count unread notifications", err))
	}
	return ok(c, http.StatusOK, echo.Map{"count": count})
}

// MarkAsRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	notifID, err := uintParam(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.notificationRepository.MarkAsRead(c.Request().Context(), caller(c).ID(), notifID); err != nil {
		return fail(c, repoErr("mark notification read", "notification", err))
	}
	return ok(c, http.StatusOK, echo.Map{"read": true})
}

// MarkAllAsRead marks all of the caller's notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	if err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), caller(c).ID()); err != nil {
		return fail(c, apperrors.Internal("mark notifications read", err))
	}
	return ok(c, http.StatusOK, echo.Map{"read": true})
}
