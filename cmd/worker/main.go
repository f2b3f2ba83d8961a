// Package main runs the background job worker (sign-in emails).
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nextoral/backend/config"
	"github.com/nextoral/backend/internal/worker"
	"github.com/nextoral/backend/pkg/queue"
	"github.com/nextoral/backend/pkg/redis"
)

// drainTimeout bounds how long an in-flight send may finish after a signal.
const drainTimeout = 10 * time.Second

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(jobQueue, worker.NewMailer(cfg.Email, logger), logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(ctx)
	}()
	logger.Info("email worker started", zap.Bool("smtp", cfg.Email.SMTPHost != ""))

	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
