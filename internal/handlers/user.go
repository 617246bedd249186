package handlers

import (
	"github.com/buildvault/backend/internal/middleware"
	"github.com/buildvault/backend/internal/services"
	"github.com/buildvault/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

// UserHandler serves the admin user management endpoints.
type UserHandler struct {
	profileService *services.ProfileService
}

func NewUserHandler(profileService *services.ProfileService) *UserHandler {
	return &UserHandler{profileService: profileService}
}

// List
// GET /api/admin/users
func (h *UserHandler) List(c *gin.Context) {
	var req services.ProfileListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.profileService.List(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID returns a profile with its granted project ids
// GET /api/admin/users/:id and GET /api/profiles/:id
func (h *UserHandler) GetByID(c *gin.Context) {
	detail, err := h.profileService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, detail)
}

// Update applies a partial edit; the body is narrowed field by field
// PATCH /api/admin/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "Unable to read request body")
		return
	}

	patch, err := services.ParseProfilePatch(body)
	if err != nil {
		response.Error(c, err)
		return
	}

	callerID := middleware.GetUserID(c)
	targetID := c.Param("id")
	if err := h.profileService.Update(c.Request.Context(), callerID, targetID, patch); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c)
}

// Delete removes an account. Callers cannot remove themselves.
// DELETE /api/admin/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	targetID := c.Param("id")

	if err := h.profileService.Delete(c.Request.Context(), callerID, targetID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c)
}
