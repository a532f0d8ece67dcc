package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/internal/config"
	"github.com/temcen/recoengine/internal/database"
	"github.com/temcen/recoengine/internal/handlers"
	"github.com/temcen/recoengine/internal/middleware"
	"github.com/temcen/recoengine/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: NewLogger(cfg.Logging),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Initialize services
	services, err := services.New(cfg, app.logger, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	app.handlers = handlers.New(cfg, app.logger, services)
	app.router = NewRouter(cfg, app.logger, app.handlers, services.RateLimit)

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Logger() *logrus.Logger {
	return a.logger
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if err := a.services.Close(); err != nil {
		a.logger.WithError(err).Error("Error flushing recommendation events")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// NewRouter mounts the public routes. limiter may be nil.
func NewRouter(cfg *config.Config, logger *logrus.Logger, h *handlers.Handlers, limiter *services.RateLimitService) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg))

	// Operational endpoints are not rate limited
	router.GET("/health", h.Health.Check)
	router.GET("/metrics", h.Metrics.Serve)

	api := router.Group("/")
	api.Use(middleware.RateLimit(limiter, logger))
	{
		api.GET("/", h.Recommendation.Welcome)
		api.GET("/reco_api/:user_id", h.Recommendation.Recommend)
		api.GET("/popular/:category_name", h.Recommendation.PopularByCategory)
		api.GET("/bought_together/:user_id", h.Recommendation.BoughtTogether)
		api.GET("/user_popular/:user_id", h.Recommendation.UserPopular)
	}

	return router
}
