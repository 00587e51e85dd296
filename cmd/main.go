package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"todo-lifecycle/internal/cache"
	"todo-lifecycle/internal/config"
	"todo-lifecycle/internal/queue"
	"todo-lifecycle/internal/repository"
	"todo-lifecycle/internal/routes"
	"todo-lifecycle/internal/service"
	"todo-lifecycle/internal/worker"
	"todo-lifecycle/pkg/logger"
)

func main() {
	config.LoadDotEnv(".env")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "Store not available; exiting", "error", err, "driver", cfg.StoreDriver)
		os.Exit(1)
	}

	opts := []service.Option{}
	if cfg.RedisURL != "" {
		client, err := cache.NewClient(ctx, cfg.RedisURL, cfg.RedisPoolSize)
		if err != nil {
			logger.Warn(ctx, "Redis unavailable, list cache disabled", "error", err)
		} else {
			defer client.Close()
			opts = append(opts, service.WithCache(cache.NewTodoCache(client, cfg.CacheTTLDuration())))
		}
	}
	svc := service.NewTodoService(store, opts...)

	queue.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaPartitions)
	pub := queue.NewPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
	defer pub.Close()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      routes.Router(routes.Deps{Todos: svc, Publisher: pub, JWTSecret: cfg.JWTSecret}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return worker.NewSweeper(svc, cfg.SweepInterval).Run(gctx)
	})
	g.Go(func() error {
		return worker.Run(gctx, worker.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, svc)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Server error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Server stopped")
}
