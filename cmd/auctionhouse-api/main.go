package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auctionhouse/internal/api"
	"auctionhouse/internal/auction"
	"auctionhouse/internal/config"
	"auctionhouse/internal/db"
	"auctionhouse/internal/ledger"
	"auctionhouse/internal/notify"
	"auctionhouse/internal/ownership"
	"auctionhouse/internal/progression"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
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

	sink, closeSinks, err := buildSink(cfg.Notify, logger)
	if err != nil {
		logger.Error("notify setup failed", "err", err)
		os.Exit(1)
	}
	defer closeSinks()

	table := progression.DefaultTable()
	locks := &ledger.ItemLocks{}
	engine := auction.NewEngine(store, locks, sink, logger, auction.Config{
		TimeLimit:           cfg.Auction.TimeLimit,
		MinIncrementPercent: cfg.Auction.MinIncrementPercent,
		FinalizeRetry:       cfg.Auction.FinalizeRetry,
		InitialLevel:        table.First().Name,
	})
	defer engine.Close()
	owners := ownership.NewService(store, locks, sink, logger, ownership.Config{
		StarterBalance:      cfg.Auction.StarterBalance,
		LeavePenaltyPercent: cfg.Auction.LeavePenaltyPercent,
		ConfirmTimeout:      cfg.Auction.ConfirmTimeout,
	})
	defer owners.Close()
	progress := progression.NewService(store, locks, logger, progression.Config{
		Table:     table,
		WinValue:  cfg.Auction.WinValue,
		LossValue: cfg.Auction.LossValue,
	})

	server := api.New(cfg, logger, engine, owners, progress)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("auctionhouse api listening", "addr", cfg.Addr, "time_limit", cfg.Auction.TimeLimit.String())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// buildSink always logs events and adds the AMQP and Discord sinks that
// are configured.
func buildSink(cfg config.NotifyConfig, logger *slog.Logger) (notify.Sink, func(), error) {
	sinks := notify.Multi{notify.NewLogSink(logger)}
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("notify close failed", "err", err)
			}
		}
	}
	if cfg.AMQPURL != "" {
		amqpSink, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, amqpSink)
		closers = append(closers, amqpSink.Close)
		logger.Info("amqp notifications enabled", "exchange", cfg.AMQPExchange)
	}
	if cfg.DiscordToken != "" {
		discordSink, err := notify.NewDiscordSink(cfg.DiscordToken, cfg.DiscordChannel)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sinks = append(sinks, discordSink)
		logger.Info("discord notifications enabled", "channel", cfg.DiscordChannel)
	}
	return sinks, closeAll, nil
}
