package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/handlers"
	"taskboard/internal/middleware"
	"taskboard/internal/models"
	"taskboard/internal/observability"
	"taskboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the taskboard API server",
	Run:   run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) {
	// 加载配置
	cfg := config.Load()

	// 初始化日志系统
	if err := config.InitLogger(cfg); err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := logrus.StandardLogger()

	// OpenTelemetry 初始化（可选）
	if shutdown, err := observability.SetupTracing(context.Background(), cfg); err == nil {
		defer func() { _ = shutdown(context.Background()) }()
	} else {
		logger.Warnf("init tracing: %v", err)
	}

	// 初始化数据库
	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis 可选，仅用于跨实例转发通知
	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warnf("Redis unavailable, notices stay on this instance: %v", err)
			_ = client.Close()
		} else {
			rdb = client
		}
		cancel()
	}

	// 初始化服务
	automationService := services.NewAutomationService(db, logger, cfg.Automation)
	cardService := services.NewCardService(db, logger)
	boardService := services.NewBoardService(db, logger)

	hub := services.NewBoardHub(logger)
	hub.SetAuthorizer(func(c *gin.Context, boardID string) error {
		_, err := boardService.GetBoard(c.Request.Context(), c.GetString(middleware.ContextWorkspaceID), boardID)
		return err
	})
	go hub.Run()
	executor := services.NewAutomationExecutor(automationService, cardService, logger, cfg.Automation)
	cardService.SetAutomation(automationService, executor)

	subCtx, stopSub := context.WithCancel(context.Background())
	defer stopSub()
	if rdb != nil {
		notifier := services.NewRedisNotifier(rdb, cfg.Automation.NotifyChannel)
		executor.SetNotifier(services.NewGuardedNotifier(notifier, hub,
			cfg.Automation.NotifyMaxFailures, cfg.Automation.NotifyResetTimeout, logger))
		go notifier.Subscribe(subCtx, hub)
	} else {
		executor.SetNotifier(services.MultiNotifier{hub})
	}

	// 设置 Gin 模式
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, db, rdb, hub, automationService, boardService, cardService)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("Starting server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	stopSub()
	hub.Stop()
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Server exited")
}

func setupRouter(cfg *config.Config, db *gorm.DB, rdb redis.UniversalClient, hub *services.BoardHub,
	automationService *services.AutomationService, boardService *services.BoardService, cardService *services.CardService) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimitMiddleware(cfg))
	router.Use(otelgin.Middleware(cfg.Monitoring.Tracing.ServiceName))

	// 健康检查
	metricsPath := ""
	if cfg.Monitoring.Enabled {
		metricsPath = cfg.Monitoring.MetricsPath
	}
	handlers.RegisterHealthRoutes(router, handlers.NewHealthHandler(db, rdb, hub, Version), metricsPath)

	// API 路由组
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg))
	{
		handlers.RegisterAutomationRoutes(api, handlers.NewAutomationHandler(automationService))
		handlers.RegisterBoardRoutes(api, handlers.NewBoardHandler(boardService))
		handlers.RegisterCardRoutes(api, handlers.NewCardHandler(cardService))

		// 看板实时推送
		api.GET("/ws", hub.HandleWebSocket)
	}

	return router
}
