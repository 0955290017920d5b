package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"auctionhouse/internal/config"
	"auctionhouse/internal/ledger"
	"auctionhouse/internal/ledger/postgres"
	"auctionhouse/internal/ledger/sqlite"
)

// OpenStore connects the configured ledger backend and brings its schema up
// to date. Postgres is used whenever DATABASE_URL is set.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (ledger.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if url := strings.TrimSpace(cfg.DatabaseURL); url != "" {
		pool, err := Connect(ctx, url, "auctionhouse")
		if err != nil {
			return nil, err
		}
		store := postgres.New(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("ledger store ready", "backend", "postgres")
		return store, nil
	}
	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	logger.Info("ledger store ready", "backend", "sqlite", "path", cfg.SQLitePath)
	return store, nil
}
