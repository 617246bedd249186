package main

import (
	"github.com/buildvault/backend/internal/middleware"
	"github.com/buildvault/backend/internal/services"
	"github.com/buildvault/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, app *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(app.cfg.Server.CORSOrigins))
	r.MaxMultipartMemory = 32 << 20

	authLimiter := middleware.NewRateLimiter(5, 10)
	app.limiters = append(app.limiters, authLimiter)

	r.GET("/health", app.healthHandler.CheckHealth)

	// Locally stored photos are served directly
	if storage := app.cfg.Storage; storage.Driver == "" || storage.Driver == "local" {
		r.Static(storage.PublicBase, storage.LocalDir)
	}

	api := r.Group("/api", middleware.AuditLog())
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/signup", app.authHandler.SignUp)
			auth.POST("/login", app.authHandler.Login)
			auth.POST("/refresh", app.authHandler.Refresh)
		}

		// SSE accepts the token as a query parameter
		api.GET("/events/notifications",
			middleware.StreamAuthRequired(),
			middleware.Require(app.guard, services.AdminOrManager),
			app.sseHandler.StreamNotifications)

		// Any signed-in identity, whatever its status
		authed := api.Group("", middleware.AuthRequired())
		{
			authed.GET("/auth/me", app.authHandler.GetCurrentUser)
			authed.POST("/auth/logout", app.authHandler.Logout)
			authed.POST("/auth/change-password", app.authHandler.ChangePassword)
			authed.GET("/profiles/:id", middleware.RequireSelfOrStaff(app.guard, "id"), app.userHandler.GetByID)
		}

		// Approved users of any role
		approved := api.Group("", middleware.AuthRequired(), middleware.Require(app.guard, services.AnyApproved))
		{
			approved.GET("/projects", app.projectHandler.List)
			approved.GET("/projects/:id", app.projectHandler.GetByID)
			approved.GET("/projects/:id/photos", app.photoHandler.List)
			approved.POST("/projects/:id/photos", app.photoHandler.Upload)
			approved.DELETE("/photos/:id", app.photoHandler.Delete)

			approved.GET("/notifications", app.notificationHandler.List)
			approved.POST("/notifications/read-all", app.notificationHandler.MarkAllRead)
			approved.POST("/notifications/:id/read", app.notificationHandler.MarkRead)
		}

		// Approved admins and managers
		privileged := api.Group("", middleware.AuthRequired(), middleware.Require(app.guard, services.AdminOrManager))
		{
			privileged.POST("/projects", app.projectHandler.Create)
			privileged.PUT("/projects/:id", app.projectHandler.Update)
			privileged.DELETE("/projects/:id", app.projectHandler.Delete)

			admin := privileged.Group("/admin")
			admin.GET("/users", app.userHandler.List)
			admin.GET("/users/:id", app.userHandler.GetByID)
			admin.PATCH("/users/:id", app.userHandler.Update)
			admin.DELETE("/users/:id", app.userHandler.Delete)

			admin.GET("/system-logs", app.systemLogHandler.List)
			admin.GET("/system-logs/modules", app.systemLogHandler.GetModules)
			admin.POST("/system-logs/cleanup", app.systemLogHandler.Cleanup)
		}
	}
}
