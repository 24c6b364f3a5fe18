package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadgate/leadgate/internal/config"
	"github.com/leadgate/leadgate/internal/handler"
	"github.com/leadgate/leadgate/internal/middleware"
	"github.com/leadgate/leadgate/internal/pkg/logger"
	"github.com/leadgate/leadgate/internal/repository"
	"github.com/leadgate/leadgate/internal/service"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger
	logger.Init(cfg.Logging.Level)

	// 3. Initialize Persistence
	// Log store (Postgres > Memory)
	var logStore service.LogStore
	var db *sqlx.DB
	if cfg.Database.DSN != "" {
		conn, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			db = conn
			logStore = repository.NewPostgresLogStore(conn)
		} else {
			logger.Error("⚠️ Failed to connect to DB, logs will be memory-only", "error", err)
		}
	}
	if logStore == nil {
		logStore = service.NewMemoryLogStore()
	}

	// Recent log cache (Redis > none)
	var recent service.RecentCache
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			recent = repository.NewRedisRecentLogs(redisClient, cfg.Redis.RecentListKey, cfg.Redis.RecentListMax)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, recent log cache disabled", "error", err)
		}
	}

	// 4. Initialize Core Services
	stream := service.NewStreamHub()
	writer := service.NewWriter(logStore, recent, stream)
	logSvc := service.NewLogService(logStore, recent, stream)
	chatLogger := service.NewChatLogger(writer)

	// 5. Setup Router
	r := gin.Default()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestTrace(writer))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "leadgate"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(cfg))

	logHandler := handler.NewLogHandler(logSvc, stream)

	// CRM surfaces need the relational store; in memory-only mode the server
	// still ingests logs, and serves the admin surface only when configured to.
	if db != nil {
		userSvc := service.NewUserService(repository.NewPostgresUserRepo(db), writer)
		leadSvc := service.NewLeadService(repository.NewPostgresLeadRepo(db), writer)
		lineSvc := service.NewLineService(repository.NewPostgresLineRepo(db), chatLogger)

		userHandler := handler.NewUserHandler(userSvc, cfg)
		leadHandler := handler.NewLeadHandler(leadSvc)
		lineHandler := handler.NewLineHandler(lineSvc)

		auth := v1.Group("/auth")
		{
			auth.POST("/register", userHandler.Register)
			auth.POST("/login", userHandler.Login)
		}

		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(cfg, userSvc))
		{
			authed.GET("/users/me", userHandler.Me)
			authed.GET("/users/:id", userHandler.Get)
			authed.PUT("/users/:id", userHandler.Update)

			admin := authed.Group("")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.GET("/users", userHandler.List)
				admin.POST("/users", userHandler.Register)
				admin.PUT("/users/:id/role", userHandler.UpdateRole)

				mountLogRoutes(admin, logHandler)
			}

			authed.POST("/leads", leadHandler.Create)
			authed.GET("/leads", leadHandler.List)
			authed.GET("/leads/count", leadHandler.Count)
			authed.GET("/leads/:id", leadHandler.Get)
			authed.PUT("/leads/:id", leadHandler.Update)
			authed.DELETE("/leads/:id", leadHandler.Delete)

			line := authed.Group("/line")
			{
				line.POST("/messages", lineHandler.CreateMessage)
				line.GET("/messages", lineHandler.ListMessages)
				line.GET("/messages/:id", lineHandler.GetMessage)
				line.PUT("/messages/:id", lineHandler.UpdateMessage)
				line.DELETE("/messages/:id", lineHandler.DeleteMessage)
				line.POST("/users", lineHandler.UpsertUser)
				line.GET("/users", lineHandler.ListUsers)
				line.GET("/users/:line_user_id", lineHandler.GetUser)
				line.POST("/users/:line_user_id/typing", lineHandler.MarkTyping)
				line.DELETE("/users/:line_user_id", lineHandler.DeleteUser)
			}

		}
	} else if cfg.Server.AllowUnauthenticatedLogs {
		logger.Warn("⚠️ Running without PostgreSQL: CRM routes disabled, log admin routes unauthenticated")
		mountLogRoutes(v1.Group(""), logHandler)
	} else {
		logger.Warn("⚠️ Running without PostgreSQL: CRM and log admin routes disabled (set LEADGATE_SERVER_ALLOW_UNAUTHENTICATED_LOGS=true to expose /v1/logs without auth)")
	}

	// 6. Background Retention
	retentionCtx, stopRetention := context.WithCancel(context.Background())
	defer stopRetention()
	if cfg.Retention.CleanupIntervalMinutes > 0 {
		go retentionLoop(retentionCtx, logSvc, cfg)
	}

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 LeadGate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	stopRetention()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

// mountLogRoutes mounts the log admin surface under /logs. Audit and API
// records get no update or delete route.
func mountLogRoutes(g *gin.RouterGroup, h *handler.LogHandler) {
	logs := g.Group("/logs")
	{
		logs.GET("/health", h.Health)
		logs.GET("/statistics", h.Statistics)
		logs.GET("/analytics", h.Analytics)
		logs.POST("/cleanup", h.Cleanup)
		logs.GET("/stream", h.Stream)

		logs.POST("/system", h.CreateSystemLog)
		logs.POST("/system/bulk", h.CreateSystemLogs)
		logs.GET("/system", h.ListSystemLogs)
		logs.GET("/system/:id", h.GetSystemLog)
		logs.PUT("/system/:id", h.UpdateSystemLog)
		logs.DELETE("/system/:id", h.DeleteSystemLog)

		logs.POST("/audit", h.CreateAuditLog)
		logs.GET("/audit", h.ListAuditLogs)
		logs.GET("/audit/:id", h.GetAuditLog)

		logs.POST("/api", h.CreateAPILog)
		logs.GET("/api", h.ListAPILogs)
		logs.GET("/api/:id", h.GetAPILog)
	}
}

// retentionLoop runs the periodic cleanup pass until ctx is cancelled.
func retentionLoop(ctx context.Context, logSvc *service.LogService, cfg *config.Config) {
	interval := time.Duration(cfg.Retention.CleanupIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := logSvc.Cleanup(ctx, cfg.Retention.Days); err != nil {
				logger.Error("retention cleanup failed", "error", err.Error())
			}
		}
	}
}
