package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jadylc/inviter-scout/internal/app"
	"github.com/jadylc/inviter-scout/internal/config"
	"github.com/jadylc/inviter-scout/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "inviter-scout start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("inviter-scout starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scout, err := app.NewScout(ctx, cfg)
	if err != nil {
		logger.ErrorObj("failed to initialize scout", "error", err)
		return err
	}

	if err := scout.Run(ctx); err != nil {
		return fmt.Errorf("scout run: %w", err)
	}

	return nil
}
