package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/notification-service/internal/config"
	"github.com/jwalitptl/notification-service/internal/handler"
	notificationHandler "github.com/jwalitptl/notification-service/internal/handler/notification"
	"github.com/jwalitptl/notification-service/internal/middleware"
	"github.com/jwalitptl/notification-service/internal/repository/postgres"
	"github.com/jwalitptl/notification-service/internal/router"
	"github.com/jwalitptl/notification-service/internal/service/aggregator"
	"github.com/jwalitptl/notification-service/internal/ws"
	"github.com/jwalitptl/notification-service/pkg/auth"
	"github.com/jwalitptl/notification-service/pkg/logger"
	"github.com/jwalitptl/notification-service/pkg/messaging/redisstream"
	"github.com/jwalitptl/notification-service/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.New(&logger.Config{
		Level:   level,
		Pretty:  cfg.Log.Pretty,
		Service: "notification-api",
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redisstream.New(redisstream.Config{
		URL:              cfg.Redis.URL,
		MaxRetries:       cfg.Redis.MaxRetries,
		RetryBackoff:     cfg.Redis.RetryBackoff,
		PoolSize:         cfg.Redis.PoolSize,
		MinIdleConns:     cfg.Redis.MinIdleConns,
		DeadLetterStream: cfg.Consumer.DeadLetterStream,
		ClaimMinIdle:     cfg.Consumer.ClaimMinIdle,
	}, log.ZL())
	if err != nil {
		log.Fatal(err, "failed to create broker")
	}
	defer broker.Close()

	m := metrics.New("notification_service")

	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)

	hub := ws.NewHub(log, m)
	agg := aggregator.NewService(notificationRepo, hub, log, m, cfg.Consumer.OnError)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down...")
		cancel()
	}()

	consumerName := cfg.Consumer.Name
	if consumerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		consumerName = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}

	deliveries, err := broker.Consume(ctx, cfg.Consumer.Stream, cfg.Consumer.Group, consumerName)
	if err != nil {
		log.Fatal(err, "failed to start consuming")
	}
	go agg.Run(ctx, deliveries)

	var authMW *middleware.AuthMiddleware
	if cfg.JWT.Secret != "" {
		authMW = middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret))
	}

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}

	r := router.NewRouter(
		authMW,
		notificationHandler.NewHandler(notificationRepo),
		ws.NewHandler(hub),
		handler.NewHandler(),
		router.Config{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORS:             corsConfig,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("notification service listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "failed to shut down server cleanly")
	}
}
