// Package ownership moves money and ownership outside auctions: wallets,
// group funds, memberships, direct club sales and share trades.
package ownership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"auctionhouse/internal/ledger"
	"auctionhouse/internal/notify"
)

type Config struct {
	StarterBalance      int64
	LeavePenaltyPercent int64
	ConfirmTimeout      time.Duration

	Now       func() time.Time
	AfterFunc AfterFunc
}

type Service struct {
	store      ledger.Store
	locks      *ledger.ItemLocks
	events     *notify.Queue
	log        *slog.Logger
	cfg        Config
	handshakes *Handshakes
}

func NewService(store ledger.Store, locks *ledger.ItemLocks, sink notify.Sink, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = notify.Nop{}
	}
	if locks == nil {
		locks = &ledger.ItemLocks{}
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:      store,
		locks:      locks,
		events:     notify.NewQueue(sink, logger, 0, 0),
		log:        logger,
		cfg:        cfg,
		handshakes: NewHandshakes(cfg.ConfirmTimeout, cfg.Now, cfg.AfterFunc),
	}
}

func (s *Service) Close() {
	s.handshakes.Stop()
	s.events.Close()
}

// Flush waits until every notification published so far was delivered.
func (s *Service) Flush() { s.events.Flush() }

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	ev.At = s.cfg.Now()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("notify failed", "kind", string(ev.Kind), "err", err)
	}
}

// EnsureWallet creates the user's wallet with the starter balance. Existing
// wallets are returned untouched.
func (s *Service) EnsureWallet(ctx context.Context, userID string) (ledger.Wallet, bool, error) {
	if err := ledger.User(userID).Validate(); err != nil {
		return ledger.Wallet{}, false, err
	}
	var w ledger.Wallet
	var created bool
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		created, err = tx.CreateWallet(ctx, userID, s.cfg.StarterBalance)
		if err != nil {
			return err
		}
		if created && s.cfg.StarterBalance > 0 {
			if err := tx.AppendEntries(ctx, ledger.Transfer("starter", ledger.AccountMarket, ledger.AccountOf(ledger.User(userID)), s.cfg.StarterBalance, "")); err != nil {
				return err
			}
		}
		w, err = tx.Wallet(ctx, userID)
		return err
	})
	if err != nil {
		return ledger.Wallet{}, false, err
	}
	if created {
		s.log.Info("wallet created", "user", userID, "balance", w.Balance)
	}
	return w, created, nil
}

func (s *Service) Balance(ctx context.Context, userID string) (ledger.Wallet, error) {
	var w ledger.Wallet
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		w, err = tx.Wallet(ctx, userID)
		return err
	})
	return w, err
}

// Tip credits a wallet from the market.
func (s *Service) Tip(ctx context.Context, userID string, amount int64) (ledger.Wallet, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return ledger.Wallet{}, err
	}
	var w ledger.Wallet
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		if w, err = tx.Wallet(ctx, userID); err != nil {
			return err
		}
		w.Balance += amount
		if err := tx.SetWalletBalance(ctx, userID, w.Balance); err != nil {
			return err
		}
		return tx.AppendEntries(ctx, ledger.Transfer("tip", ledger.AccountMarket, ledger.AccountOf(ledger.User(userID)), amount, ""))
	})
	if err != nil {
		return ledger.Wallet{}, err
	}
	s.log.Info("tip credited", "user", userID, "amount", amount, "balance", w.Balance)
	return w, nil
}

// History lists the ledger rows of an identity's wallet or fund.
func (s *Service) History(ctx context.Context, id ledger.Identity) ([]ledger.Entry, error) {
	var out []ledger.Entry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.Entries(ctx, ledger.AccountOf(id))
		return err
	})
	return out, err
}

func debitWallet(ctx context.Context, tx ledger.Tx, userID string, amount int64) error {
	w, err := tx.Wallet(ctx, userID)
	if err != nil {
		return err
	}
	if w.Balance < amount {
		return fmt.Errorf("%w: wallet %s has %d, needs %d", ledger.ErrInsufficientFunds, userID, w.Balance, amount)
	}
	return tx.SetWalletBalance(ctx, userID, w.Balance-amount)
}

func creditWallet(ctx context.Context, tx ledger.Tx, userID string, amount int64) error {
	w, err := tx.Wallet(ctx, userID)
	if err != nil {
		return err
	}
	return tx.SetWalletBalance(ctx, userID, w.Balance+amount)
}
