package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/Condensa/internal/config"
	"github.com/markdave123-py/Condensa/internal/core"
	"github.com/markdave123-py/Condensa/internal/core/extract"
	"github.com/markdave123-py/Condensa/internal/core/llm"
	"github.com/markdave123-py/Condensa/internal/core/objects"
	"github.com/markdave123-py/Condensa/internal/core/queue"
	"github.com/markdave123-py/Condensa/internal/core/store"
	"github.com/markdave123-py/Condensa/internal/core/summarize"
	"github.com/markdave123-py/Condensa/internal/models"
	"github.com/markdave123-py/Condensa/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "condensa-worker").Logger()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()

	taskQueue, err := queue.NewRedisQueue(ctx, cfg.RedisURL, cfg.StreamName, cfg.ConsumerGroup, cfg.ConsumerName)
	if err != nil {
		logger.Fatal().Err(err).Msg("queue init failed")
	}
	defer taskQueue.Close()

	taskStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("store init failed")
	}
	defer taskStore.Close()

	objectStore, err := objects.NewS3Client(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("object store init failed")
	}

	geminiExtractor, err := extract.NewGeminiExtractor(ctx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		logger.Fatal().Err(err).Msg("gemini extractor init failed")
	}
	defer geminiExtractor.Close()

	summarizer, err := llm.NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		logger.Fatal().Err(err).Msg("summarizer init failed")
	}
	defer summarizer.Close()

	extractors := map[models.ExtractionMode]core.DocumentExtractor{
		models.ModeFastText:       extract.NewDocconvExtractor(false),
		models.ModeVisionAssisted: geminiExtractor,
	}

	engine := summarize.NewEngine(summarizer, cfg.ChunkSize, cfg.MaxDepth, cfg.RetryAttempts, logger)

	w := worker.New(taskQueue, taskStore, objectStore, extractors, engine, worker.Config{
		ClaimBlock:  cfg.ClaimBlock,
		ReclaimIdle: cfg.ReclaimIdle,
	}, logger)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
	logger.Info().Msg("worker stopped")
}
