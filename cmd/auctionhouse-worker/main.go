package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auctionhouse/internal/config"
	"auctionhouse/internal/db"
	"auctionhouse/internal/market"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	store, err := db.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("ledger store open failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	drifter := market.NewDrifter(store, logger, cfg.MarketVolatility)

	if cfg.RunOnce {
		if _, err := drifter.Tick(ctx); err != nil {
			logger.Error("tick failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.MarketTickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.MarketTickEvery.String(), "volatility", cfg.MarketVolatility)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if _, err := drifter.Tick(ctx); err != nil {
				logger.Error("market tick failed", "err", err)
			}
		}
	}
}
