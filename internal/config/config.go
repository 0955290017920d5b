package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// StoreConfig selects the ledger backend. DatabaseURL wins when both are set.
type StoreConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"AUCTIONHOUSE_SQLITE_PATH"`
}

func (c StoreConfig) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" && strings.TrimSpace(c.SQLitePath) == "" {
		return errors.New("DATABASE_URL or AUCTIONHOUSE_SQLITE_PATH is required")
	}
	return nil
}

type AuctionConfig struct {
	TimeLimit           time.Duration `env:"AUCTIONHOUSE_TIME_LIMIT"             envDefault:"60s"`
	MinIncrementPercent int64         `env:"AUCTIONHOUSE_MIN_INCREMENT_PERCENT"  envDefault:"5"`
	FinalizeRetry       time.Duration `env:"AUCTIONHOUSE_FINALIZE_RETRY"         envDefault:"5s"`
	ConfirmTimeout      time.Duration `env:"AUCTIONHOUSE_CONFIRM_TIMEOUT"        envDefault:"30s"`
	LeavePenaltyPercent int64         `env:"AUCTIONHOUSE_LEAVE_PENALTY_PERCENT"  envDefault:"10"`
	StarterBalance      int64         `env:"AUCTIONHOUSE_STARTER_BALANCE"        envDefault:"10000"`
	WinValue            int64         `env:"AUCTIONHOUSE_WIN_VALUE"              envDefault:"100"`
	LossValue           int64         `env:"AUCTIONHOUSE_LOSS_VALUE"             envDefault:"50"`
}

type NotifyConfig struct {
	AMQPURL        string `env:"AUCTIONHOUSE_AMQP_URL"`
	AMQPExchange   string `env:"AUCTIONHOUSE_AMQP_EXCHANGE"   envDefault:"auction_events"`
	DiscordToken   string `env:"AUCTIONHOUSE_DISCORD_TOKEN"`
	DiscordChannel string `env:"AUCTIONHOUSE_DISCORD_CHANNEL"`
}

type APIConfig struct {
	Store   StoreConfig
	Auction AuctionConfig
	Notify  NotifyConfig

	Addr         string `env:"AUCTIONHOUSE_API_ADDR"      envDefault:":8080"`
	AdminToken   string `env:"AUCTIONHOUSE_ADMIN_TOKEN"`
	CommandToken string `env:"AUCTIONHOUSE_COMMAND_TOKEN"`
}

type WorkerConfig struct {
	Store StoreConfig

	MarketTickEvery  time.Duration `env:"AUCTIONHOUSE_MARKET_TICK_EVERY"  envDefault:"1h"`
	MarketVolatility string        `env:"AUCTIONHOUSE_MARKET_VOLATILITY"  envDefault:"normal"`
	RunOnce          bool          `env:"AUCTIONHOUSE_WORKER_RUN_ONCE"`
}

type CLIConfig struct {
	APIBaseURL string `env:"AHCTL_API_BASE_URL" envDefault:"http://localhost:8080"`
}

func parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Addr = port
	}
	cfg.Addr = normalizeAddr(cfg.Addr)
	cfg.AdminToken = strings.TrimSpace(cfg.AdminToken)
	cfg.CommandToken = strings.TrimSpace(cfg.CommandToken)

	if err := cfg.Store.validate(); err != nil {
		return cfg, err
	}
	if cfg.AdminToken == "" {
		return cfg, errors.New("AUCTIONHOUSE_ADMIN_TOKEN is required")
	}
	if cfg.CommandToken == "" {
		return cfg, errors.New("AUCTIONHOUSE_COMMAND_TOKEN is required")
	}
	if cfg.AdminToken == cfg.CommandToken {
		return cfg, errors.New("admin and command tokens must differ")
	}
	a := cfg.Auction
	if a.TimeLimit <= 0 || a.FinalizeRetry <= 0 || a.ConfirmTimeout <= 0 {
		return cfg, errors.New("auction durations must be positive")
	}
	if a.MinIncrementPercent < 0 || a.MinIncrementPercent > 100 {
		return cfg, errors.New("AUCTIONHOUSE_MIN_INCREMENT_PERCENT must be between 0 and 100")
	}
	if a.LeavePenaltyPercent < 0 || a.LeavePenaltyPercent > 100 {
		return cfg, errors.New("AUCTIONHOUSE_LEAVE_PENALTY_PERCENT must be between 0 and 100")
	}
	if a.StarterBalance < 0 || a.WinValue < 0 || a.LossValue < 0 {
		return cfg, errors.New("balances and value swings must not be negative")
	}
	if (cfg.Notify.DiscordToken == "") != (cfg.Notify.DiscordChannel == "") {
		return cfg, errors.New("AUCTIONHOUSE_DISCORD_TOKEN and AUCTIONHOUSE_DISCORD_CHANNEL must be set together")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Store.validate(); err != nil {
		return cfg, err
	}
	cfg.MarketVolatility = normalizeVolatility(cfg.MarketVolatility)
	if cfg.MarketTickEvery <= 0 {
		return cfg, errors.New("AUCTIONHOUSE_MARKET_TICK_EVERY must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	if err := parse(&cfg); err != nil {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg
}

func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func normalizeVolatility(v string) string {
	switch v = strings.ToLower(strings.TrimSpace(v)); v {
	case "calm", "normal", "wild":
		return v
	default:
		return "normal"
	}
}
