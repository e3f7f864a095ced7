package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/court-dcm-api/api/swagger"
	"github.com/noah-isme/court-dcm-api/internal/handler"
	"github.com/noah-isme/court-dcm-api/internal/middleware"
	"github.com/noah-isme/court-dcm-api/internal/models"
	"github.com/noah-isme/court-dcm-api/internal/repository"
	"github.com/noah-isme/court-dcm-api/internal/service"
	"github.com/noah-isme/court-dcm-api/pkg/cache"
	"github.com/noah-isme/court-dcm-api/pkg/config"
	"github.com/noah-isme/court-dcm-api/pkg/database"
	"github.com/noah-isme/court-dcm-api/pkg/jobs"
	"github.com/noah-isme/court-dcm-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/court-dcm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/court-dcm-api/pkg/middleware/requestid"
	"github.com/noah-isme/court-dcm-api/pkg/storage"
)

// @title Court DCM API
// @version 1.0.0
// @description Case management with DCM track classification and hearing allocation
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, cause list caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	caseRepo := repository.NewCaseRepository(db)
	benchRepo := repository.NewBenchRepository(db)
	hearingRepo := repository.NewHearingRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	classifier := service.NewClassificationService(cfg.DCM, logr)
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "court-dcm-api",
		Audience:           []string{"court-dcm"},
	})
	userSvc := service.NewUserService(userRepo, auditRepo, validate, logr)
	caseSvc := service.NewCaseService(caseRepo, auditRepo, classifier, validate, logr)
	benchSvc := service.NewBenchService(benchRepo, validate, logr)
	hearingSvc := service.NewHearingService(hearingRepo, auditRepo, cacheRepo, validate, logr, service.HearingServiceConfig{
		CauseListTTL: cfg.CauseList.CacheTTL,
	})
	schedulerSvc := service.NewSchedulerService(caseRepo, benchRepo, userRepo, hearingRepo, classifier,
		db, auditRepo, cacheRepo, metricsSvc, validate, logr, service.SchedulerConfig{
			DailyCapacityMinutes: cfg.Scheduling.DailyCapacityMinutes,
			SlackFraction:        cfg.Scheduling.SlackFraction,
			OpeningTime:          cfg.Scheduling.OpeningTime,
			MaxWindowDays:        cfg.Scheduling.MaxWindowDays,
		})

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportRepo, caseRepo, hearingRepo, store, signer, validate, logr, service.ExportServiceConfig{
			DownloadPrefix: cfg.APIPrefix + "/exports/download",
		})
		queue := jobs.NewQueue("exports", exportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc.BindQueue(queue)
		queue.Start(ctx)
		defer queue.Stop()

		if err := exportSvc.RecoverPendingJobs(ctx); err != nil {
			logr.Sugar().Warnw("failed to recover pending export jobs", "error", err)
		}
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	caseHandler := handler.NewCaseHandler(caseSvc)
	benchHandler := handler.NewBenchHandler(benchSvc)
	scheduleHandler := handler.NewScheduleHandler(schedulerSvc, hearingSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
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
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("", middleware.JWT(authSvc))

	users := protected.Group("/users")
	users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
	users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)

	cases := protected.Group("/cases")
	cases.GET("", caseHandler.List)
	cases.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleClerk), caseHandler.Create)
	cases.POST("/classify-batch", middleware.RequireRoles(models.RoleAdmin, models.RoleClerk), caseHandler.ClassifyBatch)
	cases.GET("/:id", caseHandler.Get)
	cases.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleClerk), caseHandler.Update)
	cases.POST("/:id/classify", middleware.RequireRoles(models.RoleAdmin, models.RoleClerk), caseHandler.Classify)
	cases.POST("/:id/override-track", middleware.RequireRoles(models.RoleAdmin, models.RoleJudge), caseHandler.OverrideTrack)
	cases.GET("/:id/audit", middleware.RequireRoles(models.RoleAdmin, models.RoleJudge), caseHandler.AuditTrail)

	benches := protected.Group("/benches")
	benches.GET("", benchHandler.List)
	benches.GET("/:id", benchHandler.Get)
	benches.POST("", middleware.RequireRoles(models.RoleAdmin), benchHandler.Create)
	benches.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), benchHandler.Update)
	benches.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), benchHandler.Deactivate)

	schedule := protected.Group("/schedule")
	schedule.POST("/allocate", middleware.RequireRoles(models.RoleAdmin, models.RoleClerk), scheduleHandler.Allocate)
	schedule.GET("/conflicts/:date", scheduleHandler.Conflicts)
	schedule.GET("/cause-list/:date", scheduleHandler.CauseList)
	schedule.GET("/hearings", scheduleHandler.ListHearings)
	schedule.GET("/hearings/:id", scheduleHandler.GetHearing)
	schedule.PUT("/hearings/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleClerk, models.RoleJudge), scheduleHandler.UpdateHearing)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		exports := api.Group("/exports")
		// The download token is self-authenticating; everything else needs a session.
		exports.GET("/download", exportHandler.Download)
		exports.POST("", middleware.JWT(authSvc), exportHandler.Create)
		exports.GET("/:id", middleware.JWT(authSvc), exportHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
