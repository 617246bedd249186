package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buildvault/backend/internal/middleware"
	"github.com/buildvault/backend/internal/services"
	"github.com/buildvault/backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sseKeepAlive = 25 * time.Second

// SSEHandler streams live notification events to admins and managers.
type SSEHandler struct {
	hub   *services.SSEHub
	guard *services.Guard
}

func NewSSEHandler(hub *services.SSEHub, guard *services.Guard) *SSEHandler {
	return &SSEHandler{hub: hub, guard: guard}
}

// StreamNotifications pushes each notification created for the caller.
// Authentication and the first AdminOrManager check run before this handler;
// the check is repeated before every write and the stream ends once it fails.
// GET /api/events/notifications
func (h *SSEHandler) StreamNotifications(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID, userID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Str("user_id", userID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok || !h.stillAllowed(ctx, clientID, userID) {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", data)
			c.Writer.Flush()
			return true
		case <-ticker.C:
			if !h.stillAllowed(ctx, clientID, userID) {
				return false
			}
			fmt.Fprint(w, ": ping\n\n")
			c.Writer.Flush()
			return true
		case <-ctx.Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}

func (h *SSEHandler) stillAllowed(ctx context.Context, clientID, userID string) bool {
	if _, err := h.guard.Require(ctx, userID, services.AdminOrManager); err != nil {
		logger.Info().Str("client_id", clientID).Str("user_id", userID).Err(err).Msg("SSE client lost access")
		return false
	}
	return true
}
