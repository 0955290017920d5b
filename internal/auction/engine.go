// Package auction runs timed ascending auctions for clubs and duelists:
// bid validation, per-item countdowns and atomic settlement.
package auction

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"auctionhouse/internal/ledger"
	"auctionhouse/internal/notify"
)

type Config struct {
	TimeLimit           time.Duration
	MinIncrementPercent int64
	FinalizeRetry       time.Duration
	InitialLevel        string

	Now       func() time.Time
	AfterFunc AfterFunc
}

func (c Config) withDefaults() Config {
	if c.TimeLimit <= 0 {
		c.TimeLimit = 60 * time.Second
	}
	if c.FinalizeRetry <= 0 {
		c.FinalizeRetry = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Engine serializes bids and settlement per item through ItemLocks. Both
// paths take the same lock; the countdown wait holds none.
type Engine struct {
	store     ledger.Store
	events    *notify.Queue
	log       *slog.Logger
	cfg       Config
	validator Validator
	sched     *Scheduler
	locks     *ledger.ItemLocks
	frozen    atomic.Bool
}

func NewEngine(store ledger.Store, locks *ledger.ItemLocks, sink notify.Sink, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = notify.Nop{}
	}
	if locks == nil {
		locks = &ledger.ItemLocks{}
	}
	cfg = cfg.withDefaults()
	e := &Engine{
		store:     store,
		events:    notify.NewQueue(sink, logger, 0, 0),
		log:       logger,
		cfg:       cfg,
		validator: Validator{IncrementPercent: cfg.MinIncrementPercent},
		sched:     NewScheduler(cfg.TimeLimit, cfg.Now, cfg.AfterFunc),
		locks:     locks,
	}
	e.sched.SetHandler(e.expire)
	return e
}

func (e *Engine) Scheduler() *Scheduler { return e.sched }

// Close cancels every pending countdown and waits for queued notifications.
// Bids stay in the store, so a restarted process settles them after
// RegisterAuction or FinalizeNow.
func (e *Engine) Close() {
	e.sched.Stop()
	e.events.Close()
}

// Flush waits until every notification published so far was delivered.
func (e *Engine) Flush() { e.events.Flush() }

func (e *Engine) Freeze()      { e.frozen.Store(true) }
func (e *Engine) Unfreeze()    { e.frozen.Store(false) }
func (e *Engine) Frozen() bool { return e.frozen.Load() }

// PlaceBid validates and records a bid, then restarts the item countdown.
func (e *Engine) PlaceBid(ctx context.Context, req BidRequest) (ledger.Bid, error) {
	if e.Frozen() {
		return ledger.Bid{}, ledger.ErrBiddingFrozen
	}
	bid, gen, err := e.acceptBid(ctx, req)
	if err != nil {
		return ledger.Bid{}, err
	}
	e.log.Info("bid accepted", "item", req.Item.String(), "bidder", req.Bidder.String(), "amount", req.Amount, "gen", gen)
	e.publish(ctx, notify.Event{Kind: notify.BidAccepted, Item: req.Item, Winner: req.Bidder, Amount: req.Amount})
	return bid, nil
}

func (e *Engine) acceptBid(ctx context.Context, req BidRequest) (ledger.Bid, uint64, error) {
	unlock := e.locks.Lock(req.Item)
	defer unlock()
	// a freeze issued while waiting on the lock still wins
	if e.Frozen() {
		return ledger.Bid{}, 0, ledger.ErrBiddingFrozen
	}

	var bid ledger.Bid
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, _, err := e.validator.Check(ctx, tx, req); err != nil {
			return err
		}
		bid = ledger.Bid{Item: req.Item, Bidder: req.Bidder, Amount: req.Amount}
		if req.Item.Type == ledger.ItemDuelist {
			bid.ClubID = req.ClubID
		}
		return tx.InsertBid(ctx, &bid)
	})
	if err != nil {
		return ledger.Bid{}, 0, err
	}
	return bid, e.sched.Start(req.Item), nil
}

// RegisterAuction opens item for bidding: stale bids are cleared and the
// countdown is Idle until the first accepted bid.
func (e *Engine) RegisterAuction(ctx context.Context, key ledger.ItemKey) error {
	unlock := e.locks.Lock(key)
	defer unlock()
	return e.clearLocked(ctx, key)
}

// ResetAuction cancels the countdown and discards bids without settling.
func (e *Engine) ResetAuction(ctx context.Context, key ledger.ItemKey) error {
	unlock := e.locks.Lock(key)
	defer unlock()
	if err := e.clearLocked(ctx, key); err != nil {
		return err
	}
	e.log.Info("auction reset", "item", key.String())
	return nil
}

func (e *Engine) clearLocked(ctx context.Context, key ledger.ItemKey) error {
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := loadItem(ctx, tx, key); err != nil {
			return err
		}
		return tx.DeleteBids(ctx, key)
	})
	if err != nil {
		return err
	}
	e.sched.Cancel(key)
	return nil
}

type Status struct {
	Item         ledger.Item `json:"item"`
	CurrentBid   *ledger.Bid `json:"current_bid,omitempty"`
	CurrentPrice int64       `json:"current_price"`
	MinNext      int64       `json:"min_next"`
	RemainingMS  int64       `json:"time_remaining_ms"`
	State        TimerState  `json:"state"`
	Frozen       bool        `json:"frozen"`
}

func (s Status) TimeRemaining() time.Duration {
	return time.Duration(s.RemainingMS) * time.Millisecond
}

func (e *Engine) Status(ctx context.Context, key ledger.ItemKey) (Status, error) {
	var st Status
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		item, err := loadItem(ctx, tx, key)
		if err != nil {
			return err
		}
		current, top, err := CurrentPrice(ctx, tx, item)
		if err != nil {
			return err
		}
		st = Status{
			Item:         item,
			CurrentBid:   top,
			CurrentPrice: current,
			MinNext:      MinimumNext(current, e.cfg.MinIncrementPercent),
		}
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	left, _ := e.sched.Remaining(key)
	st.RemainingMS = left.Milliseconds()
	st.State = e.sched.State(key)
	st.Frozen = e.Frozen()
	return st, nil
}

func (e *Engine) Bids(ctx context.Context, key ledger.ItemKey) ([]ledger.Bid, error) {
	var bids []ledger.Bid
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := loadItem(ctx, tx, key); err != nil {
			return err
		}
		var err error
		bids, err = tx.Bids(ctx, key)
		return err
	})
	return bids, err
}

// FinalizeNow settles key immediately through the same serialized path as
// a natural expiry and cancels any pending countdown.
func (e *Engine) FinalizeNow(ctx context.Context, key ledger.ItemKey) (Outcome, error) {
	unlock := e.locks.Lock(key)
	out, err := e.settle(ctx, key)
	if err != nil {
		unlock()
		return out, err
	}
	e.sched.Drop(key)
	unlock()

	e.logOutcome(out)
	e.publish(ctx, out.event())
	return out, nil
}

// expire is the scheduler handler. It runs on the timer goroutine.
func (e *Engine) expire(key ledger.ItemKey, gen uint64) {
	ctx := context.Background()
	unlock := e.locks.Lock(key)
	if !e.sched.Live(key, gen) {
		unlock()
		e.log.Debug("stale timer ignored", "item", key.String(), "gen", gen, "err", ledger.ErrStaleTimer)
		return
	}

	out, err := e.settle(ctx, key)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadySettled) {
			// the settle tx rolled back its bid cleanup too
			clearErr := e.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
				return tx.DeleteBids(ctx, key)
			})
			e.sched.Done(key, gen)
			unlock()
			e.log.Warn("auction already settled, bids cleared", "item", key.String(), "clear_err", clearErr)
			return
		}
		if ledger.IsValidation(err) {
			e.sched.Done(key, gen)
			unlock()
			e.log.Error("auction cannot be settled, dropping countdown", "item", key.String(), "err", err)
			return
		}
		next := e.sched.StartIn(key, e.cfg.FinalizeRetry)
		unlock()
		e.log.Error("finalize failed, will retry", "item", key.String(), "retry_in", e.cfg.FinalizeRetry.String(), "gen", next, "err", err)
		return
	}
	e.sched.Done(key, gen)
	unlock()

	e.logOutcome(out)
	e.publish(ctx, out.event())
}

func (e *Engine) logOutcome(out Outcome) {
	if !out.Sold {
		e.log.Info("auction unsold", "item", out.Item.String())
		return
	}
	e.log.Info("auction settled", "item", out.Item.String(), "winner", out.Winner.String(), "amount", out.Amount, "debited", out.Debit)
}

func (e *Engine) publish(ctx context.Context, ev notify.Event) {
	if ev.At.IsZero() {
		ev.At = e.cfg.Now()
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warn("notify failed", "kind", string(ev.Kind), "item", ev.Item.String(), "err", err)
	}
}
