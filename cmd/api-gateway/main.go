package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/labelforge/labelforge-api/api/swagger"
	"github.com/labelforge/labelforge-api/internal/handler"
	"github.com/labelforge/labelforge-api/internal/middleware"
	"github.com/labelforge/labelforge-api/internal/models"
	"github.com/labelforge/labelforge-api/internal/repository"
	"github.com/labelforge/labelforge-api/internal/service"
	"github.com/labelforge/labelforge-api/pkg/cache"
	"github.com/labelforge/labelforge-api/pkg/config"
	"github.com/labelforge/labelforge-api/pkg/database"
	"github.com/labelforge/labelforge-api/pkg/logger"
	corsmiddleware "github.com/labelforge/labelforge-api/pkg/middleware/cors"
	reqidmiddleware "github.com/labelforge/labelforge-api/pkg/middleware/requestid"
)

// @title LabelForge Prepress API
// @version 1.0.0
// @description Prepress job lifecycle engine for label and tag production
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// repositories
	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewPrepressRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	jobCardRepo := repository.NewJobCardRepository(db)
	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	// services
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "labelforge-api",
	})

	notifier := service.NewQueueNotifier(jobCardRepo, service.QueueNotifierConfig{
		Workers:    cfg.Prepress.NotifyWorkers,
		MaxRetries: cfg.Prepress.NotifyRetries,
	}, metricsSvc, logr)
	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	notifier.Start(notifierCtx)
	defer func() {
		stopNotifier()
		notifier.Stop()
	}()

	prepressSvc := service.NewPrepressService(service.PrepressServiceParams{
		Jobs:      jobRepo,
		Ledger:    activityRepo,
		JobCards:  jobCardRepo,
		Designers: userRepo,
		Notifier:  notifier,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Logger:    logr,
	})
	statsSvc := service.NewStatisticsService(jobRepo, cacheSvc, cfg.Prepress.StatsCacheTTL, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(jobRepo, logr)
	}

	// handlers
	authHandler := handler.NewAuthHandler(authSvc)
	prepressHandler := newPrepressHandler(prepressSvc, exportSvc)
	statsHandler := handler.NewStatisticsHandler(statsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	prepress := api.Group("/prepress", middleware.JWT(authSvc))
	{
		jobs := prepress.Group("/jobs")
		{
			jobs.POST("",
				middleware.RequireRoles(models.RoleMerchandiser, models.RoleHODPrepress, models.RoleAdmin),
				middleware.Audit(userRepo, models.AuditActionJobCreate, "prepress_job"),
				prepressHandler.Create)
			jobs.GET("", prepressHandler.List)
			jobs.GET("/export",
				middleware.RequireRoles(models.RoleHODPrepress, models.RoleAdmin),
				middleware.Audit(userRepo, models.AuditActionQueueExport, "prepress_queue"),
				prepressHandler.Export)
			jobs.GET("/:id", prepressHandler.Get)
			jobs.GET("/:id/activity", prepressHandler.Activity)
			jobs.POST("/:id/assign",
				middleware.RequireRoles(models.RoleHODPrepress, models.RoleAdmin),
				middleware.Audit(userRepo, models.AuditActionJobAssign, "prepress_job"),
				prepressHandler.Assign)
			jobs.POST("/:id/reassign",
				middleware.RequireRoles(models.RoleHODPrepress, models.RoleAdmin),
				middleware.Audit(userRepo, models.AuditActionJobAssign, "prepress_job"),
				prepressHandler.Reassign)
			jobs.POST("/:id/start", prepressHandler.Start)
			jobs.POST("/:id/pause", prepressHandler.Pause)
			jobs.POST("/:id/resume", prepressHandler.Resume)
			jobs.POST("/:id/submit", prepressHandler.Submit)
			jobs.POST("/:id/approve",
				middleware.RequireRoles(models.RoleHODPrepress, models.RoleAdmin),
				prepressHandler.Approve)
			jobs.POST("/:id/reject",
				middleware.RequireRoles(models.RoleHODPrepress, models.RoleAdmin),
				prepressHandler.Reject)
			jobs.POST("/:id/status/:status",
				middleware.Audit(userRepo, models.AuditActionJobTransition, "prepress_job"),
				prepressHandler.Transition)
			jobs.POST("/:id/remarks", prepressHandler.Remark)
			jobs.PUT("/:id/priority",
				middleware.RequireRoles(models.RoleHODPrepress, models.RoleAdmin),
				prepressHandler.Priority)
		}
		prepress.GET("/queue",
			middleware.RequireRoles(models.RoleDesigner),
			prepressHandler.MyQueue)
		prepress.GET("/statistics",
			middleware.RequireRoles(models.RoleHODPrepress, models.RoleAdmin),
			statsHandler.Statistics)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}

func newPrepressHandler(svc *service.PrepressService, exporter *service.ExportService) *handler.PrepressHandler {
	if exporter == nil {
		return handler.NewPrepressHandler(svc, nil)
	}
	return handler.NewPrepressHandler(svc, exporter)
}
