package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/papayapulse/pulse-api/config"
	database "github.com/papayapulse/pulse-api/internal/core"
	"github.com/papayapulse/pulse-api/internal/core/repository/psql"
	"github.com/papayapulse/pulse-api/internal/events"
	"github.com/papayapulse/pulse-api/internal/inference"
	logicv1 "github.com/papayapulse/pulse-api/internal/logic/v1"
	v1 "github.com/papayapulse/pulse-api/internal/web/v1"
	"github.com/papayapulse/pulse-api/middleware"
)

func main() {
	// Load configuration from environment variables (with .env file support for local dev)
	cfg := config.Load()

	logger, err := middleware.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Configuration validation failed", zap.Error(err))
	}

	logger.Info("Service starting",
		zap.String("service", cfg.Service.Name),
		zap.String("version", cfg.Service.Version),
		zap.String("env", cfg.Service.Env),
		zap.String("port", cfg.Service.Port),
	)

	// Tracing
	tracingEnabled := false
	if _, err := middleware.InitTracing(cfg); err != nil {
		if errors.Is(err, middleware.ErrTracingDisabled) {
			logger.Info("Tracing disabled (TRACING_ENABLED=false)")
		} else {
			logger.Warn("Failed to initialize tracing", zap.Error(err))
		}
	} else {
		tracingEnabled = true
		logger.Info("Tracing initialized",
			zap.String("endpoint", cfg.Tracing.Endpoint),
			zap.Float64("sample_rate", cfg.Tracing.SampleRate),
		)
	}

	// Pyroscope profiling
	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg); err != nil {
			logger.Warn("Failed to initialize profiling", zap.Error(err))
		} else {
			logger.Info("Profiling initialized", zap.String("endpoint", cfg.Profiling.Endpoint))
			defer middleware.StopProfiling()
		}
	} else {
		logger.Info("Profiling disabled (PROFILING_ENABLED=false)")
	}

	// Database connection pool (pgx)
	pool, err := database.Connect(context.Background(), &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("Database connection pool established")

	if cfg.Database.AutoCreateSchema {
		if err := psql.EnsureSchema(context.Background(), pool); err != nil {
			logger.Fatal("Failed to create schema", zap.Error(err))
		}
		logger.Info("Database schema ensured")
	}

	users := psql.NewUserRepository(pool)
	logs := psql.NewPredictionLogRepository(pool)

	// Token verification
	var verifier middleware.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		fv, err := middleware.NewFirebaseVerifier(middleware.FirebaseOptions{
			ProjectID: cfg.Firebase.ProjectID,
			JWKSURL:   cfg.Firebase.JWKSURL,
			KeyTTL:    cfg.Firebase.GetKeyCacheTTL(),
		})
		if err != nil {
			logger.Fatal("Failed to initialize token verifier", zap.Error(err))
		}
		verifier = fv
		logger.Info("Firebase token verifier initialized", zap.String("project_id", cfg.Firebase.ProjectID))
	} else {
		logger.Warn("FIREBASE_PROJECT_ID not set, every request runs as the fallback user",
			zap.String("user_id", middleware.FallbackUserID))
	}

	// Inference clients
	upstream := func(service string, u config.UpstreamConfig) inference.Options {
		return inference.Options{Service: service, BaseURL: u.URL, Timeout: u.GetTimeout()}
	}
	growthClient, err := inference.NewGrowthClient(upstream("growth", cfg.Upstreams.Growth))
	if err != nil {
		logger.Fatal("Invalid growth service config", zap.Error(err))
	}
	qualityClient, err := inference.NewQualityClient(
		upstream("quality", cfg.Upstreams.Quality),
		upstream("quality-im", cfg.Upstreams.QualityIM),
	)
	if err != nil {
		logger.Fatal("Invalid quality service config", zap.Error(err))
	}
	marketClient, err := inference.NewMarketClient(upstream("market", cfg.Upstreams.Market))
	if err != nil {
		logger.Fatal("Invalid market service config", zap.Error(err))
	}
	leafClient, err := inference.NewLeafClient(upstream("leaf", cfg.Upstreams.Leaf))
	if err != nil {
		logger.Fatal("Invalid leaf service config", zap.Error(err))
	}
	logger.Info("Inference clients initialized",
		zap.String("growth", growthClient.BaseURL()),
		zap.String("quality", cfg.Upstreams.Quality.URL),
		zap.String("quality_im", cfg.Upstreams.QualityIM.URL),
		zap.String("market", marketClient.BaseURL()),
		zap.String("leaf", leafClient.BaseURL()),
	)

	// Prediction events (optional)
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		logger.Info("Kafka publisher initialized",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	// Idempotency store (optional)
	var rdb *redis.Client
	var idempotencyStore middleware.IdempotencyStore
	if cfg.Redis.Addr != "" {
		rdb, err = middleware.NewRedisClient(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		idempotencyStore = middleware.NewRedisIdempotencyStore(rdb)
		logger.Info("Redis idempotency store initialized", zap.String("addr", cfg.Redis.Addr))
	}

	var inferenceMiddleware []gin.HandlerFunc
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		})
		inferenceMiddleware = append(inferenceMiddleware, limiter.Middleware(logger))
	}
	if idempotencyStore != nil {
		inferenceMiddleware = append(inferenceMiddleware,
			middleware.IdempotencyMiddleware(idempotencyStore, cfg.Redis.GetIdempotencyTTL(), logger))
	}

	handlers := v1.Handlers{
		Users:   v1.NewUserHandler(logicv1.NewUserService(users)),
		Growth:  v1.NewGrowthHandler(logicv1.NewGrowthService(growthClient, logs, publisher, logger)),
		Quality: v1.NewQualityHandler(logicv1.NewQualityService(qualityClient, logs, publisher, logger)),
		Market:  v1.NewMarketHandler(logicv1.NewMarketService(marketClient, users, logs, publisher, logger)),
		Leaf:    v1.NewLeafHandler(logicv1.NewLeafService(leafClient, logs, publisher, logger)),
		History: v1.NewHistoryHandler(logicv1.NewHistoryService(logs)),
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	var isShuttingDown atomic.Bool

	// Tracing middleware (must be first for context propagation)
	r.Use(middleware.TracingMiddleware())

	// Logging middleware (must be before Prometheus middleware)
	r.Use(middleware.LoggingMiddleware(logger))

	if cfg.Metrics.Enabled {
		r.Use(middleware.PrometheusMiddleware())
	}
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Returns 503 once shutdown has started, to drain traffic before HTTP shutdown.
	r.GET("/ready", func(c *gin.Context) {
		if isShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("Readiness check: database unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database_unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	r.GET("/", v1.Banner(cfg.Service.Version))
	api := r.Group("/api")
	api.GET("/health", v1.APIHealth)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(verifier, logger, cfg.AuthAllowUnauthenticatedFallback))
	v1.RegisterRoutes(authed, handlers, inferenceMiddleware...)

	srv := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting Papaya Pulse API", zap.String("port", cfg.Service.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Fail readiness first and wait for propagation.
	isShuttingDown.Store(true)
	drainDelay := cfg.GetReadinessDrainDelayDuration()
	if drainDelay > 0 {
		logger.Info("Readiness drain delay started", zap.Duration("delay", drainDelay))
		time.Sleep(drainDelay)
	}

	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down server...", zap.Duration("timeout", shutdownTimeout))

	// HTTP Server → rate limiter → Kafka → Redis → Database → Tracer

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server shutdown complete")
	}

	if limiter != nil {
		limiter.Stop()
	}

	if err := publisher.Close(); err != nil {
		logger.Error("Kafka writer close error", zap.Error(err))
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	pool.Close()
	logger.Info("Database pool closed")

	if tracingEnabled {
		if err := middleware.Shutdown(shutdownCtx); err != nil {
			logger.Error("Tracer shutdown error", zap.Error(err))
		} else {
			logger.Info("Tracer shutdown complete")
		}
	}

	logger.Info("Graceful shutdown complete")
}
