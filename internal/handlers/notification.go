package handlers

import (
	"github.com/buildvault/backend/internal/middleware"
	"github.com/buildvault/backend/internal/services"
	"github.com/buildvault/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List returns the caller's feed and unread count
// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	feed, err := h.notificationService.Feed(c.Request.Context(), middleware.GetProfile(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, feed)
}

// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.notificationService.MarkRead(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true, "updated": updated})
}
