package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/Condensa/internal/api/handlers"
	"github.com/markdave123-py/Condensa/internal/config"
	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/core/objects"
	"github.com/markdave123-py/Condensa/internal/core/queue"
	"github.com/markdave123-py/Condensa/internal/core/store"
	"github.com/markdave123-py/Condensa/internal/services"
)

// App wires the gateway: queue + store + object storage + HTTP server.
type App struct {
	Queue  core.TaskQueue
	Store  core.TaskStore
	Server *Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	taskQueue, err := queue.NewRedisQueue(initCtx, cfg.RedisURL, cfg.StreamName, cfg.ConsumerGroup, cfg.ConsumerName)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("stream", cfg.StreamName).Msg("task queue ready")

	taskStore, err := store.NewRedisStore(initCtx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("task store ready")

	objectStore, err := objects.NewS3Client(initCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("bucket", cfg.BucketName).Msg("object store ready")

	submitSvc := services.NewSubmitService(taskQueue, taskStore, objectStore, cfg.TaskTTL, logger)
	taskHandler := handlers.NewTaskHandler(submitSvc, taskStore, logger)
	server := NewServer(cfg, taskHandler, logger)

	return &App{Queue: taskQueue, Store: taskStore, Server: server}, nil
}

func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
}
