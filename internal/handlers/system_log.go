package handlers

import (
	"net/http"

	"github.com/buildvault/backend/internal/services"
	"github.com/buildvault/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
	retentionDays    int
}

func NewSystemLogHandler(db *gorm.DB, retentionDays int) *SystemLogHandler {
	return &SystemLogHandler{
		systemLogService: services.NewSystemLogService(db),
		retentionDays:    retentionDays,
	}
}

// GET /api/admin/system-logs
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.systemLogService.List(&req)
	if err != nil {
		response.Error(c, response.NewUpstream(http.StatusInternalServerError, err))
		return
	}

	response.Success(c, resp)
}

// GET /api/admin/system-logs/modules
func (h *SystemLogHandler) GetModules(c *gin.Context) {
	modules, err := h.systemLogService.GetModules()
	if err != nil {
		response.Error(c, response.NewUpstream(http.StatusInternalServerError, err))
		return
	}
	response.Success(c, gin.H{"modules": modules})
}

// Cleanup applies the configured retention immediately
// POST /api/admin/system-logs/cleanup
func (h *SystemLogHandler) Cleanup(c *gin.Context) {
	deleted, err := h.systemLogService.CleanupOldLogs(h.retentionDays)
	if err != nil {
		response.Error(c, response.NewUpstream(http.StatusInternalServerError, err))
		return
	}
	response.Success(c, gin.H{"deleted": deleted, "retention_days": h.retentionDays})
}
