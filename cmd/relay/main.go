package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-review-relay/internal/app"
	"github.com/samvad-hq/samvad-review-relay/internal/config"
	"github.com/samvad-hq/samvad-review-relay/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "review relay failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("review relay starting", "config", map[string]any{
		"app_id":       cfg.AppID,
		"max_pages":    cfg.MaxPages,
		"feed_format":  cfg.FeedFormat,
		"storage_type": cfg.StorageType,
		"run_interval": cfg.RunInterval.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay, err := app.NewRelay(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize relay", "error", err)
		return err
	}
	defer func() {
		if err := relay.Close(); err != nil {
			logger.ErrorObj("relay close failed", "error", err)
		}
	}()

	if err := relay.Run(ctx); err != nil {
		return fmt.Errorf("relay run: %w", err)
	}
	return nil
}
