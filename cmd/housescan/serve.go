package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
	"github.com/InonELGABSI/houseScanner/internal/governor"
	"github.com/InonELGABSI/houseScanner/internal/llm"
	"github.com/InonELGABSI/houseScanner/internal/pipeline"
	"github.com/InonELGABSI/houseScanner/internal/server"
	"github.com/InonELGABSI/houseScanner/internal/storage"
	"github.com/InonELGABSI/houseScanner/internal/vision"
)

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HouseCheck HTTP API",
	Long: `Starts the scan and simulation API on the configured address.

Startup requires an OpenAI API key (OPENAI_API_KEY or config file).
Redis is probed for checklist caching and skipped with a warning when
unreachable; base checklists are warmed up and the data directory is
watched for edits until shutdown.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger

	if cfg.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY environment variable is required")
	}

	cache := checklist.NewCache(cfg.Cache, log)
	if err := cache.Ping(ctx); err != nil {
		log.Warn("redis unavailable, running without checklist cache", zap.Error(err))
		_ = cache.Close()
		cache = nil
	} else {
		log.Info("redis cache connected", zap.String("addr", cfg.Cache.RedisAddr))
		defer cache.Close()
	}

	store := checklist.NewStore(cfg.Data.Dir, cache, log)
	if err := store.Warm(ctx); err != nil {
		log.Warn("checklist warm-up failed", zap.Error(err))
	}

	watcher, err := checklist.NewWatcher(store, log)
	if err != nil {
		log.Warn("checklist watcher unavailable", zap.Error(err))
	} else {
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	gov := governor.New(cfg.RateLimit.TPM, cfg.RateLimit.RPM, cfg.RateLimit.MaxConcurrent, log)
	client := llm.NewClient(cfg.OpenAI, gov, log)
	normalizer := vision.NewNormalizer(cfg.Images, log)
	pipe := pipeline.New(client, normalizer, cfg.Pipeline, log)
	fetcher := storage.NewFetcher(cfg.Fetch, normalizer, log)
	local := storage.NewLocal(normalizer, log)

	srv := server.New(cfg, pipe, fetcher, local, store, log)
	return srv.Run(ctx)
}
