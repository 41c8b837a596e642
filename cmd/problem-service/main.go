package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"switchdesk/internal/common/cache"
	"switchdesk/internal/common/db"
	commonmw "switchdesk/internal/common/http/middleware"
	"switchdesk/internal/common/mq"
	"switchdesk/internal/problem/controller"
	"switchdesk/internal/problem/repository"
	"switchdesk/internal/problem/service"
	"switchdesk/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/problem_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()

	database, err := db.Open(appCfg.Database)
	if err != nil {
		logger.Error(ctx, "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = database.Close()
	}()

	checks := map[string]controller.HealthCheck{}

	// The listing cache is optional; without Redis every lookup reads the store.
	var cacheClient cache.Cache
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Warn(ctx, "redis unavailable, listing cache disabled", zap.Error(err))
		} else {
			defer func() {
				_ = redisCache.Close()
			}()
			cacheClient = redisCache
			checks["redis"] = redisCache.Ping
		}
	}

	problemRepo := repository.NewProblemRepository(database)
	lookups := repository.NewCachedLookups(problemRepo, cacheClient, appCfg.Lookup)

	var queue *mq.KafkaQueue
	var publisher *service.ProblemEventPublisher
	if appCfg.Events.Enabled {
		queue, err = mq.NewKafkaQueue(appCfg.Kafka)
		if err != nil {
			logger.Error(ctx, "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = queue.Close()
		}()
		publisher = service.NewProblemEventPublisher(queue, appCfg.Events.Topic)

		consumer := service.NewListingInvalidationConsumer(queue, lookups, appCfg.Events.Topic, appCfg.Events.GroupPrefix)
		if err := consumer.Subscribe(ctx); err != nil {
			logger.Error(ctx, "subscribe problem events failed", zap.Error(err))
			return
		}
		if err := queue.Start(); err != nil {
			logger.Error(ctx, "start kafka consumers failed", zap.Error(err))
			return
		}
		checks["kafka"] = queue.Ping
	}

	problemService := service.NewProblemService(database, problemRepo, lookups, publisher)
	checks["database"] = problemService.Ping
	httpServer := buildHTTPServer(appCfg.Server, problemService, controller.NewHealthController(checks))

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "problem http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("driver", appCfg.Database.Driver),
			zap.Bool("cache", cacheClient != nil),
			zap.Bool("events", appCfg.Events.Enabled),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	if queue != nil {
		_ = queue.Stop()
	}
}

func buildHTTPServer(cfg ServerConfig, problemService *service.ProblemService, health *controller.HealthController) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	router.GET("/healthz", health.Healthz)
	controller.NewProblemController(problemService).Register(router.Group("/api/v1/problems"))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
