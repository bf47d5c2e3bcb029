package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"procurement/internal/cache"
	"procurement/internal/config"
	"procurement/internal/database"
	"procurement/internal/handler"
	"procurement/internal/logger"
	"procurement/internal/middleware"
	"procurement/internal/notify"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/internal/websocket"
)

// @title           Procurement Approvals API
// @version         1.0
// @description     Review, approve and reject requisitions, purchase orders and payments.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "optional YAML config file")
	seedCount := flag.Int("seed", 0, "insert this many demo approval requests on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger is not up yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, *seedCount); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger, seedCount int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Database.DSN, log)
	if err != nil {
		return err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}
	if seedCount > 0 {
		if err := database.Seed(ctx, db, seedCount, time.Now().UnixNano()); err != nil {
			return err
		}
		log.Info("Seeded approval requests", zap.Int("count", seedCount))
	}

	// Set up dependencies (Repository -> Service -> Handler)
	approvalRepo := repository.NewApprovalRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	txManager := repository.NewTransactionManager(db)

	var statsCache cache.StatsCache = cache.NewMemory(cfg.Approvals.StatsCacheTTL)
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedis(cache.NewRedisClient(cfg.Redis), cfg.Redis.Key, cfg.Approvals.StatsCacheTTL)
		defer func() { _ = rc.Close() }()
		statsCache = rc
		log.Info("Using redis stats cache", zap.String("addr", cfg.Redis.Addr))
	}

	wsHub := websocket.NewHub(log.Named("ws"))
	go wsHub.Run(ctx)

	kafkaNotifier := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, log.Named("kafka"))
	if c, ok := kafkaNotifier.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	approvalService := service.NewApprovalService(approvalRepo, auditRepo, txManager,
		service.WithStatsCache(statsCache),
		service.WithNotifier(notify.Multi{notify.Broadcast(wsHub), kafkaNotifier}),
		service.WithLogger(log.Named("approvals")),
		service.WithPageSize(cfg.Approvals.PageSize),
		service.WithMaxBulk(cfg.Approvals.MaxBulk),
	)
	userService := service.NewUserService(userRepo, auditRepo, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	auditService := service.NewAuditService(auditRepo)

	auth := middleware.NewAuth([]byte(cfg.Auth.JWTSecret))
	limiter := middleware.NewRateLimiter(cfg.RateLimit.DecisionsPerMinute, cfg.RateLimit.Burst)
	secureCookies := cfg.Server.Mode == gin.ReleaseMode

	userHandler := handler.NewUserHandler(userService, auth, cfg.Auth.TokenTTL, secureCookies)
	approvalHandler := handler.NewApprovalHandler(approvalService, auth, limiter, cfg.Approvals.PageSize)
	auditHandler := handler.NewAuditHandler(auditService, auth)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(middleware.RequestLogger(log.Named("http")), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// Decision feed for reviewers
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth.Secret(), func(role string) bool {
			return middleware.HasPermission(role, middleware.PermApprovalsRead)
		})
	})

	userHandler.RegisterRoutes(router.Group(""))
	approvalHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
