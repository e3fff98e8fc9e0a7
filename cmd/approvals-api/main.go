package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/handler"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/middleware"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/repository"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/service"
	"github.com/SOL-ICT/hrm-erp-sub019/pkg/cache"
	"github.com/SOL-ICT/hrm-erp-sub019/pkg/config"
	"github.com/SOL-ICT/hrm-erp-sub019/pkg/database"
	"github.com/SOL-ICT/hrm-erp-sub019/pkg/logger"
	corsmiddleware "github.com/SOL-ICT/hrm-erp-sub019/pkg/middleware/cors"
	reqidmiddleware "github.com/SOL-ICT/hrm-erp-sub019/pkg/middleware/requestid"
)

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The dashboard cache is an optimization; run without it.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()

	approvalRepo := repository.NewApprovalRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	notificationSvc := service.NewNotificationService(notificationRepo, service.NotificationConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	if cfg.Notifications.Enabled {
		notificationSvc.Start(context.Background())
		defer notificationSvc.Stop()
	}

	approvalOpts := []service.ApprovalServiceOption{
		service.WithDashboardCache(cacheSvc),
		service.WithApprovalMetrics(metricsSvc),
	}
	if cfg.Notifications.Enabled {
		approvalOpts = append(approvalOpts, service.WithNotifier(notificationSvc))
	}
	approvalSvc := service.NewApprovalService(approvalRepo, workflowRepo, historyRepo, logr, approvalOpts...)
	workflowSvc := service.NewWorkflowService(workflowRepo, logr)
	dashboardSvc := service.NewDashboardService(approvalRepo, cacheSvc, metricsSvc, cfg.Dashboard.CacheTTL, logr)
	authSvc := service.NewAuthService(userRepo, logr, service.AuthConfig{
		Secret:      cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(approvalSvc, logr, nil, nil)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	approvalHandler := handler.NewApprovalHandler(approvalSvc, exportSvc)
	workflowHandler := handler.NewWorkflowHandler(workflowSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, notificationSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	approvals := api.Group("/approvals", middleware.JWT(authSvc))
	approvals.POST("", approvalHandler.Create)
	approvals.GET("", approvalHandler.List)
	approvals.GET("/:id", approvalHandler.Get)
	approvals.POST("/:id/submit",
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleManager),
		approvalHandler.Submit)
	approvals.POST("/:id/approve",
		middleware.Audit(userRepo, models.AuditActionApprovalDecision, "approvals"),
		approvalHandler.Approve)
	approvals.POST("/:id/reject",
		middleware.Audit(userRepo, models.AuditActionApprovalDecision, "approvals"),
		approvalHandler.Reject)
	approvals.POST("/:id/comment", approvalHandler.Comment)
	approvals.POST("/:id/escalate",
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleManager),
		approvalHandler.Escalate)
	approvals.GET("/:id/history", approvalHandler.History)
	if cfg.Exports.Enabled {
		approvals.GET("/:id/history/export", approvalHandler.ExportHistory)
	}

	workflows := api.Group("/workflows", middleware.JWT(authSvc),
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	workflows.POST("",
		middleware.Audit(userRepo, models.AuditActionWorkflowCreate, "workflows"),
		workflowHandler.Create)
	workflows.GET("", workflowHandler.List)
	workflows.GET("/:id", workflowHandler.Get)
	workflows.DELETE("/:id",
		middleware.Audit(userRepo, models.AuditActionWorkflowDisable, "workflows"),
		workflowHandler.Deactivate)

	dashboard := api.Group("/dashboard", middleware.JWT(authSvc))
	dashboard.GET("/summary", dashboardHandler.Summary)
	dashboard.GET("/notifications", dashboardHandler.Notifications)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
