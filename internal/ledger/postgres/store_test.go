package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"auctionhouse/internal/ledger"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func TestIsSerializationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, isSerializationError(tc.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "40001"}))
	require.False(t, isUniqueViolation(nil))
}

func TestSleepWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepWithContext(ctx, 0), context.Canceled)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("AUCTIONHOUSE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AUCTIONHOUSE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	store := New(pool, nil)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStoreSettlementIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var club ledger.Club
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		club = ledger.Club{Name: "pg-idempotency", BasePrice: 1000, Value: 1000}
		if err := tx.InsertClub(ctx, &club); err != nil {
			return err
		}
		bid := ledger.Bid{Item: ledger.ClubKey(club.ID), Bidder: ledger.User("pg-tester"), Amount: 1050}
		if err := tx.InsertBid(ctx, &bid); err != nil {
			return err
		}
		return tx.InsertSale(ctx, &ledger.Sale{Item: bid.Item, Winner: bid.Bidder, Amount: bid.Amount, ValueAtSale: 1000, BidID: bid.ID})
	}))

	err := store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		bid, err := tx.HighestBid(ctx, ledger.ClubKey(club.ID))
		if err != nil {
			return err
		}
		return tx.InsertSale(ctx, &ledger.Sale{Item: bid.Item, Winner: bid.Bidder, Amount: bid.Amount, ValueAtSale: 1000, BidID: bid.ID})
	})
	require.ErrorIs(t, err, ledger.ErrAlreadySettled)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.DeleteClub(ctx, club.ID)
	}))
}
