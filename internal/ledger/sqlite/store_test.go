package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"auctionhouse/internal/ledger"

	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestClubRoundTripAndCascade(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	fixed := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return fixed })

	var club ledger.Club
	var duelist ledger.Duelist
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		club = ledger.Club{Name: "Harbor FC", BasePrice: 1000, Value: 1000, Owner: ledger.User("ana")}
		if err := tx.InsertClub(ctx, &club); err != nil {
			return err
		}
		duelist = ledger.Duelist{Name: "Ryo", BasePrice: 200, Value: 200, ExpectedSalary: 20, OwnedBy: ledger.User("ana"), ClubID: &club.ID}
		if err := tx.InsertDuelist(ctx, &duelist); err != nil {
			return err
		}
		if err := tx.UpsertContract(ctx, ledger.Contract{DuelistID: duelist.ID, ClubID: &club.ID, Owner: ledger.User("ana"), Salary: 20, PurchasePrice: 210}); err != nil {
			return err
		}
		if err := tx.ReplaceClubShares(ctx, club.ID, []ledger.Share{{ClubID: club.ID, UserID: "ana", Pct: 100}}); err != nil {
			return err
		}
		return tx.InsertBid(ctx, &ledger.Bid{Item: ledger.ClubKey(club.ID), Bidder: ledger.User("ben"), Amount: 1050})
	}))

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		got, err := tx.Club(ctx, club.ID)
		require.NoError(t, err)
		require.Equal(t, "Harbor FC", got.Name)
		require.True(t, got.Owner.Equal(ledger.User("ana")))
		require.Equal(t, fixed, got.CreatedAt)

		owned, err := tx.ClubsOwnedBy(ctx, ledger.User("ana"))
		require.NoError(t, err)
		require.Len(t, owned, 1)
		return tx.DeleteClub(ctx, club.ID)
	}))

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.Club(ctx, club.ID)
		require.ErrorIs(t, err, ledger.ErrUnknownItem)

		d, err := tx.Duelist(ctx, duelist.ID)
		require.NoError(t, err)
		require.Nil(t, d.ClubID)

		_, err = tx.Contract(ctx, duelist.ID)
		require.ErrorIs(t, err, ledger.ErrNoContract)

		shares, err := tx.ClubShares(ctx, club.ID)
		require.NoError(t, err)
		require.Empty(t, shares)

		_, err = tx.HighestBid(ctx, ledger.ClubKey(club.ID))
		require.ErrorIs(t, err, ledger.ErrNoBids)
		return nil
	}))
}

func TestHighestBidPrefersLatestOnTie(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	key := ledger.DuelistKey(9)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		for _, b := range []ledger.Bid{
			{Item: key, Bidder: ledger.User("a"), Amount: 100},
			{Item: key, Bidder: ledger.User("b"), Amount: 120},
			{Item: key, Bidder: ledger.Group("Night Owls"), Amount: 120},
		} {
			if err := tx.InsertBid(ctx, &b); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		top, err := tx.HighestBid(ctx, key)
		require.NoError(t, err)
		require.True(t, top.Bidder.Equal(ledger.Group("Night Owls")))

		all, err := tx.Bids(ctx, key)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, int64(100), all[0].Amount)
		return nil
	}))
}

func TestSaleIsUniquePerBid(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	sale := func() *ledger.Sale {
		return &ledger.Sale{Item: ledger.ClubKey(1), Winner: ledger.User("ana"), Amount: 1050, ValueAtSale: 1000, BidID: 42}
	}

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertSale(ctx, sale())
	}))
	err := store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertSale(ctx, sale())
	})
	require.ErrorIs(t, err, ledger.ErrAlreadySettled)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.CreateWallet(ctx, "ana", 500); err != nil {
			return err
		}
		return ledger.ErrInsufficientFunds
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.Wallet(ctx, "ana")
		require.ErrorIs(t, err, ledger.ErrWalletNotFound)
		return nil
	}))
}

func TestWalletsGroupsAndEntries(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		created, err := tx.CreateWallet(ctx, "ana", 500)
		require.NoError(t, err)
		require.True(t, created)
		created, err = tx.CreateWallet(ctx, "ana", 900)
		require.NoError(t, err)
		require.False(t, created)

		require.NoError(t, tx.InsertGroup(ctx, ledger.GroupFund{Name: "Night Owls"}))
		require.ErrorIs(t, tx.InsertGroup(ctx, ledger.GroupFund{Name: "Night Owls"}), ledger.ErrGroupExists)
		require.NoError(t, tx.UpsertMember(ctx, ledger.Member{Group: "Night Owls", UserID: "ana", SharePct: 60}))
		require.NoError(t, tx.UpsertMember(ctx, ledger.Member{Group: "Night Owls", UserID: "ana", SharePct: 70}))
		return tx.AppendEntries(ctx, ledger.Transfer("deposit", "wallet:ana", "fund:Night Owls", 100, ""))
	}))

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		w, err := tx.Wallet(ctx, "ana")
		require.NoError(t, err)
		require.Equal(t, int64(500), w.Balance)

		m, err := tx.Member(ctx, "Night Owls", "ana")
		require.NoError(t, err)
		require.Equal(t, int64(70), m.SharePct)

		_, err = tx.Member(ctx, "Night Owls", "ben")
		require.ErrorIs(t, err, ledger.ErrNotMember)

		entries, err := tx.Entries(ctx, "fund:Night Owls")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, int64(100), entries[0].Delta)
		return nil
	}))
}
