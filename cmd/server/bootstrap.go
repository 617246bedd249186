package main

import (
	"context"

	"github.com/buildvault/backend/internal/config"
	"github.com/buildvault/backend/internal/handlers"
	"github.com/buildvault/backend/internal/middleware"
	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/internal/services"
	"github.com/buildvault/backend/internal/storage"
	"github.com/buildvault/backend/internal/utils"
	"github.com/buildvault/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// appServices holds the initialized services and handlers.
type appServices struct {
	cfg       *config.Config
	db        *gorm.DB
	guard     *services.Guard
	taskQueue services.TaskQueue
	worker    *services.Worker
	logCron   *cron.Cron
	limiters  []*middleware.RateLimiter

	authService *services.AuthService

	authHandler         *handlers.AuthHandler
	userHandler         *handlers.UserHandler
	projectHandler      *handlers.ProjectHandler
	photoHandler        *handlers.PhotoHandler
	notificationHandler *handlers.NotificationHandler
	sseHandler          *handlers.SSEHandler
	systemLogHandler    *handlers.SystemLogHandler
	healthHandler       *handlers.HealthHandler
}

// bootstrap initializes the database, blob store, queue, schedulers and
// services. Any failure here is fatal.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database, !cfg.IsProduction()); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	services.InitSystemLogger(db)

	blobs, err := storage.New(&cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize photo storage: %v", err)
	}

	hub := services.GetSSEHub()
	notificationService := services.NewNotificationService(db, hub)

	// Redis when enabled, otherwise fan-out runs inline with the upload
	taskQueue := services.InitTaskQueue(cfg, notificationService.FanOutPhotoUploaded)

	app := newApp(cfg, db, blobs, taskQueue, hub, notificationService)

	if taskQueue.IsAsync() {
		app.worker = services.NewWorker(&cfg.Redis)
		if app.worker != nil {
			app.worker.SetProcessor(notificationService.FanOutPhotoUploaded)
			if err := app.worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start task worker")
			}
		}
	}

	app.logCron, err = services.StartLogCleanupScheduler(db, &cfg.Log)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to start log cleanup scheduler")
	}

	if err := app.authService.CreateAdminIfNotExists(context.Background(), &cfg.Admin); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return app
}

// newApp wires services and handlers over already opened dependencies.
func newApp(cfg *config.Config, db *gorm.DB, blobs storage.BlobStore, taskQueue services.TaskQueue, hub *services.SSEHub, notificationService *services.NotificationService) *appServices {
	access := services.NewAccessService(db)
	authService := services.NewAuthService(db, &cfg.JWT)
	guard := services.NewGuard(db)

	return &appServices{
		cfg:         cfg,
		db:          db,
		guard:       guard,
		taskQueue:   taskQueue,
		authService: authService,

		authHandler:         handlers.NewAuthHandler(authService),
		userHandler:         handlers.NewUserHandler(services.NewProfileService(db, access)),
		projectHandler:      handlers.NewProjectHandler(services.NewProjectService(db, access, blobs)),
		photoHandler:        handlers.NewPhotoHandler(services.NewPhotoService(db, access, blobs, taskQueue, &cfg.Upload)),
		notificationHandler: handlers.NewNotificationHandler(notificationService),
		sseHandler:          handlers.NewSSEHandler(hub, guard),
		systemLogHandler:    handlers.NewSystemLogHandler(db, cfg.Log.RetentionDays),
		healthHandler:       handlers.NewHealthHandler(db, taskQueue, hub),
	}
}

// shutdown stops schedulers and background workers.
func (s *appServices) shutdown() {
	if s.logCron != nil {
		<-s.logCron.Stop().Done()
	}
	for _, l := range s.limiters {
		l.Stop()
	}
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
