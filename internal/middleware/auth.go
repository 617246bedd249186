package middleware

import (
	"strings"

	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/internal/services"
	"github.com/buildvault/backend/internal/utils"
	"github.com/buildvault/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID  = "user_id"
	ContextEmail   = "email"
	ContextProfile = "profile"
)

// AuthRequired verifies the bearer token and stores the caller identity.
// It does not look at role or status; Require does that per route.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "Not authenticated")
			c.Abort()
			return
		}
		authenticate(c, token)
	}
}

// StreamAuthRequired is AuthRequired for EventSource clients, which cannot
// set headers: the token may also come from the "token" query parameter.
func StreamAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token, _ = bearerToken(c.GetHeader("Authorization"))
		}
		if token == "" {
			response.Unauthorized(c, "Not authenticated")
			c.Abort()
			return
		}
		authenticate(c, token)
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func authenticate(c *gin.Context, token string) {
	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "Not authenticated")
		c.Abort()
		return
	}

	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextEmail, claims.Email)
	c.Next()
}

// Require runs the guard for capability and stores the fresh profile.
func Require(guard *services.Guard, capability services.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		requireWith(c, guard, capability)
	}
}

// RequireSelfOrStaff lets the caller through when the :param path value is
// their own id, or when they are an admin or manager.
func RequireSelfOrStaff(guard *services.Guard, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requireWith(c, guard, services.SelfOrAdminOrManager(c.Param(param)))
	}
}

func requireWith(c *gin.Context, guard *services.Guard, capability services.Capability) {
	profile, err := guard.Require(c.Request.Context(), GetUserID(c), capability)
	if err != nil {
		response.Error(c, err)
		c.Abort()
		return
	}
	c.Set(ContextProfile, profile)
	c.Next()
}

// GetUserID returns the authenticated user id, or "" when there is none.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ContextEmail)
}

// GetProfile returns the profile loaded by Require.
func GetProfile(c *gin.Context) *models.Profile {
	if v, exists := c.Get(ContextProfile); exists {
		if p, ok := v.(*models.Profile); ok {
			return p
		}
	}
	return nil
}

// GetUserIDPtr is GetUserID for log records, nil when anonymous.
func GetUserIDPtr(c *gin.Context) *string {
	id := GetUserID(c)
	if id == "" {
		return nil
	}
	return &id
}
