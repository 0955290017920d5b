package ownership

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"auctionhouse/internal/ledger"
	"auctionhouse/internal/ledger/sqlite"
	"auctionhouse/internal/notify"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingSink) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	svc   *Service
	store *sqlite.Store
	clock *manualClock
	sink  *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	f := &fixture{store: store, clock: newManualClock(), sink: &recordingSink{}}
	f.svc = NewService(store, nil, f.sink, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		StarterBalance:      1000,
		LeavePenaltyPercent: 10,
		ConfirmTimeout:      30 * time.Second,
		Now:                 f.clock.Now,
		AfterFunc:           f.clock.AfterFunc,
	})
	t.Cleanup(f.svc.Close)
	return f
}

// events waits for queued notifications and returns a copy of them.
func (f *fixture) events() []notify.Event {
	f.svc.Flush()
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	return append([]notify.Event(nil), f.sink.events...)
}

func (f *fixture) tx(t *testing.T, fn func(ctx context.Context, tx ledger.Tx) error) {
	t.Helper()
	require.NoError(t, f.store.WithTx(context.Background(), fn))
}

func (f *fixture) wallet(t *testing.T, user string) {
	t.Helper()
	_, _, err := f.svc.EnsureWallet(context.Background(), user)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, user string) int64 {
	t.Helper()
	w, err := f.svc.Balance(context.Background(), user)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) setBalance(t *testing.T, user string, balance int64) {
	t.Helper()
	f.tx(t, func(ctx context.Context, tx ledger.Tx) error {
		return tx.SetWalletBalance(ctx, user, balance)
	})
}

func (f *fixture) club(t *testing.T, value int64, owner ledger.Identity) ledger.Club {
	t.Helper()
	c := ledger.Club{Name: "Harbor", BasePrice: value, Value: value, Owner: owner, LevelName: "Rookie"}
	f.tx(t, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.InsertClub(ctx, &c); err != nil {
			return err
		}
		shares, err := ledger.OwnershipShares(ctx, tx, c.ID, owner)
		if err != nil {
			return err
		}
		return tx.ReplaceClubShares(ctx, c.ID, shares)
	})
	return c
}

func (f *fixture) shares(t *testing.T, clubID int64) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	f.tx(t, func(ctx context.Context, tx ledger.Tx) error {
		shares, err := tx.ClubShares(ctx, clubID)
		for _, s := range shares {
			out[s.UserID] = s.Pct
		}
		return err
	})
	return out
}

func stakes(info GroupInfo) map[string]int64 {
	out := map[string]int64{}
	for _, m := range info.Members {
		out[m.UserID] = m.SharePct
	}
	return out
}

func TestEnsureWalletIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, created, err := f.svc.EnsureWallet(ctx, "ana")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, int64(1000), w.Balance)

	f.setBalance(t, "ana", 40)
	w, created, err = f.svc.EnsureWallet(ctx, "ana")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, int64(40), w.Balance)

	entries, err := f.svc.History(ctx, ledger.User("ana"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "starter", entries[0].Action)

	_, _, err = f.svc.EnsureWallet(ctx, "bad id!")
	require.ErrorIs(t, err, ledger.ErrInvalidIdentity)
}

func TestTip(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, "ana")

	w, err := f.svc.Tip(context.Background(), "ana", 250)
	require.NoError(t, err)
	require.Equal(t, int64(1250), w.Balance)

	_, err = f.svc.Tip(context.Background(), "ana", -5)
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = f.svc.Tip(context.Background(), "nobody", 5)
	require.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestGroupMembershipCapsAtHundred(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	info, err := f.svc.CreateGroup(ctx, "Harbor Boys", "ana", 60)
	require.NoError(t, err)
	require.Equal(t, int64(60), info.TotalShares)

	_, err = f.svc.CreateGroup(ctx, "Harbor Boys", "ben", 10)
	require.ErrorIs(t, err, ledger.ErrGroupExists)

	_, err = f.svc.JoinGroup(ctx, "Harbor Boys", "ben", 41)
	require.ErrorIs(t, err, ledger.ErrShareOverflow)
	_, err = f.svc.JoinGroup(ctx, "Harbor Boys", "ben", 40)
	require.NoError(t, err)
	_, err = f.svc.JoinGroup(ctx, "Harbor Boys", "ben", 0)
	require.ErrorIs(t, err, ledger.ErrAlreadyMember)
	_, err = f.svc.JoinGroup(ctx, "Harbor Boys", "cleo", 1)
	require.ErrorIs(t, err, ledger.ErrShareOverflow)
	_, err = f.svc.JoinGroup(ctx, "Nowhere", "cleo", 1)
	require.ErrorIs(t, err, ledger.ErrGroupNotFound)

	info, err = f.svc.GroupInfo(ctx, "Harbor Boys")
	require.NoError(t, err)
	require.Equal(t, int64(100), info.TotalShares)
	require.Equal(t, map[string]int64{"ana": 60, "ben": 40}, stakes(info))
}

func TestJoinRefreshesGroupClubShares(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateGroup(ctx, "Crew", "ana", 50)
	require.NoError(t, err)
	club := f.club(t, 1000, ledger.Group("Crew"))
	require.Equal(t, map[string]int64{"ana": 50}, f.shares(t, club.ID))

	_, err = f.svc.JoinGroup(ctx, "Crew", "ben", 30)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"ana": 50, "ben": 30}, f.shares(t, club.ID))
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.wallet(t, "ana")
	f.wallet(t, "ben")
	_, err := f.svc.CreateGroup(ctx, "Crew", "ana", 100)
	require.NoError(t, err)

	info, err := f.svc.Deposit(ctx, "Crew", "ana", 700)
	require.NoError(t, err)
	require.Equal(t, int64(700), info.Funds)
	require.Equal(t, int64(300), f.balance(t, "ana"))

	_, err = f.svc.Deposit(ctx, "Crew", "ana", 301)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	_, err = f.svc.Deposit(ctx, "Crew", "ben", 10)
	require.ErrorIs(t, err, ledger.ErrNotMember)

	_, err = f.svc.Withdraw(ctx, "Crew", "ana", 701)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	info, err = f.svc.Withdraw(ctx, "Crew", "ana", 200)
	require.NoError(t, err)
	require.Equal(t, int64(500), info.Funds)
	require.Equal(t, int64(500), f.balance(t, "ana"))

	entries, err := f.svc.History(ctx, ledger.Group("Crew"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(700), entries[0].Delta)
	require.Equal(t, int64(-200), entries[1].Delta)
}

func TestShareSaleConservesTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, u := range []string{"ana", "ben", "cleo"} {
		f.wallet(t, u)
	}
	_, err := f.svc.CreateGroup(ctx, "Crew", "ana", 60)
	require.NoError(t, err)
	_, err = f.svc.JoinGroup(ctx, "Crew", "ben", 40)
	require.NoError(t, err)
	club := f.club(t, 1000, ledger.Group("Crew"))

	p, err := f.svc.ProposeShareSale(ctx, "Crew", club.ID, "ana", "cleo", 20)
	require.NoError(t, err)
	require.Equal(t, int64(200), p.Price)
	events := f.events()
	require.Len(t, events, 1)
	require.Equal(t, notify.ConfirmationRequested, events[0].Kind)
	require.Equal(t, p.ID, events[0].Confirmation)

	_, err = f.svc.Accept(ctx, p.ID, "ana")
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	done, err := f.svc.Accept(ctx, p.ID, "cleo")
	require.NoError(t, err)
	require.Equal(t, Confirmed, done.State)

	info, err := f.svc.GroupInfo(ctx, "Crew")
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"ana": 40, "ben": 40, "cleo": 20}, stakes(info))
	require.Equal(t, int64(100), info.TotalShares)
	require.Equal(t, map[string]int64{"ana": 40, "ben": 40, "cleo": 20}, f.shares(t, club.ID))
	require.Equal(t, int64(800), f.balance(t, "cleo"))
	require.Equal(t, int64(1200), f.balance(t, "ana"))

	_, err = f.svc.Accept(ctx, p.ID, "cleo")
	require.ErrorIs(t, err, ledger.ErrConfirmationClosed)
}

func TestShareSaleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.wallet(t, "ana")
	f.wallet(t, "ben")
	_, err := f.svc.CreateGroup(ctx, "Crew", "ana", 30)
	require.NoError(t, err)
	grouped := f.club(t, 1000, ledger.Group("Crew"))
	solo := f.club(t, 1000, ledger.User("ana"))

	_, err = f.svc.ProposeShareSale(ctx, "Crew", grouped.ID, "ana", "ben", 31)
	require.ErrorIs(t, err, ledger.ErrInsufficientShares)
	_, err = f.svc.ProposeShareSale(ctx, "Crew", solo.ID, "ana", "ben", 10)
	require.ErrorIs(t, err, ledger.ErrNotGroupOwned)
	_, err = f.svc.ProposeShareSale(ctx, "Crew", grouped.ID, "ana", "ana", 10)
	require.ErrorIs(t, err, ledger.ErrSelfTrade)
	_, err = f.svc.ProposeShareSale(ctx, "Crew", grouped.ID, "ana", "ben", 0)
	require.ErrorIs(t, err, ledger.ErrInvalidShare)

	f.setBalance(t, "ben", 50)
	_, err = f.svc.ProposeShareSale(ctx, "Crew", grouped.ID, "ana", "ben", 10)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestAcceptRevalidatesAndReopens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.wallet(t, "ana")
	f.wallet(t, "ben")
	_, err := f.svc.CreateGroup(ctx, "Crew", "ana", 50)
	require.NoError(t, err)
	club := f.club(t, 1000, ledger.Group("Crew"))

	p, err := f.svc.ProposeShareSale(ctx, "Crew", club.ID, "ana", "ben", 50)
	require.NoError(t, err)
	require.Equal(t, int64(500), p.Price)

	f.setBalance(t, "ben", 100)
	got, err := f.svc.Accept(ctx, p.ID, "ben")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.Equal(t, Proposed, got.State)
	require.Equal(t, int64(100), f.balance(t, "ben"))

	f.setBalance(t, "ben", 500)
	got, err = f.svc.Accept(ctx, p.ID, "ben")
	require.NoError(t, err)
	require.Equal(t, Confirmed, got.State)
	require.Equal(t, int64(0), f.balance(t, "ben"))
	require.Equal(t, map[string]int64{"ben": 50}, f.shares(t, club.ID))
}

func TestConfirmationExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.wallet(t, "ana")
	f.wallet(t, "ben")
	club := f.club(t, 1000, ledger.User("ana"))

	p, err := f.svc.ProposeClubSale(ctx, club.ID, "ana", "ben", 700)
	require.NoError(t, err)
	f.clock.Advance(30 * time.Second)

	got, err := f.svc.Proposal(p.ID)
	require.NoError(t, err)
	require.Equal(t, Expired, got.State)
	_, err = f.svc.Accept(ctx, p.ID, "ben")
	require.ErrorIs(t, err, ledger.ErrConfirmationExpired)
	require.Equal(t, int64(1000), f.balance(t, "ben"))
}

func TestClubSaleToBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.wallet(t, "ana")
	f.wallet(t, "ben")
	club := f.club(t, 1000, ledger.User("ana"))

	_, err := f.svc.ProposeClubSale(ctx, club.ID, "ben", "ana", 700)
	require.ErrorIs(t, err, ledger.ErrNotClubOwner)
	_, err = f.svc.ProposeClubSale(ctx, club.ID, "ana", "ghost", 700)
	require.ErrorIs(t, err, ledger.ErrWalletNotFound)

	p, err := f.svc.ProposeClubSale(ctx, club.ID, "ana", "ben", 700)
	require.NoError(t, err)
	_, err = f.svc.Reject(p.ID, "cleo")
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = f.svc.Accept(ctx, p.ID, "ben")
	require.NoError(t, err)
	require.Equal(t, int64(300), f.balance(t, "ben"))
	require.Equal(t, int64(1700), f.balance(t, "ana"))
	require.Equal(t, map[string]int64{"ben": 100}, f.shares(t, club.ID))

	var owner ledger.Identity
	f.tx(t, func(ctx context.Context, tx ledger.Tx) error {
		c, err := tx.Club(ctx, club.ID)
		owner = c.Owner
		return err
	})
	require.Equal(t, ledger.User("ben"), owner)
}

func TestSellClubToMarket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.wallet(t, "ana")
	club := f.club(t, 900, ledger.User("ana"))

	_, _, err := f.svc.SellClubToMarket(ctx, club.ID, "ben")
	require.ErrorIs(t, err, ledger.ErrNotClubOwner)

	sold, proceeds, err := f.svc.SellClubToMarket(ctx, club.ID, "ana")
	require.NoError(t, err)
	require.Equal(t, int64(900), proceeds)
	require.True(t, sold.Owner.IsZero())
	require.Equal(t, int64(1900), f.balance(t, "ana"))
	require.Empty(t, f.shares(t, club.ID))
}

func TestLeaveGroupRequiresZeroShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.wallet(t, "ana")
	f.wallet(t, "ben")
	_, err := f.svc.CreateGroup(ctx, "Crew", "ana", 60)
	require.NoError(t, err)
	_, err = f.svc.JoinGroup(ctx, "Crew", "ben", 40)
	require.NoError(t, err)
	_, err = f.svc.Deposit(ctx, "Crew", "ana", 1000)
	require.NoError(t, err)
	club := f.club(t, 1000, ledger.Group("Crew"))

	_, err = f.svc.LeaveGroup(ctx, "Crew", "ana")
	require.ErrorIs(t, err, ledger.ErrSharesHeld)

	p, err := f.svc.ProposeShareSale(ctx, "Crew", club.ID, "ana", "ben", 60)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, p.ID, "ben")
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"ben": 100}, f.shares(t, club.ID))

	penalty, err := f.svc.LeaveGroup(ctx, "Crew", "ana")
	require.NoError(t, err)
	require.Equal(t, int64(100), penalty)

	info, err := f.svc.GroupInfo(ctx, "Crew")
	require.NoError(t, err)
	require.Equal(t, int64(900), info.Funds)
	require.Equal(t, map[string]int64{"ben": 100}, stakes(info))
	require.Len(t, info.Clubs, 1)

	_, err = f.svc.LeaveGroup(ctx, "Crew", "ana")
	require.ErrorIs(t, err, ledger.ErrNotMember)
}
