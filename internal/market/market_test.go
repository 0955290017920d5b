package market

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"testing"

	"auctionhouse/internal/ledger"
	"auctionhouse/internal/ledger/sqlite"

	"github.com/stretchr/testify/require"
)

func TestEvolveValue(t *testing.T) {
	require.Equal(t, int64(1), evolveValue(0, 0.1, 1))
	require.Equal(t, int64(1000), evolveValue(1000, 0, 1))
	require.Equal(t, int64(1105), evolveValue(1000, 0.1, 1))
	// Downside is clamped to maxDrop.
	require.Equal(t, evolveValue(1000, -0.5, 0.5), evolveValue(1000, -3, 0.5))
	require.Equal(t, int64(1), evolveValue(1, -0.9, 1))
}

func TestVolatilityPresets(t *testing.T) {
	calm, normal, wild := volatilityParams("calm"), volatilityParams(" NORMAL "), volatilityParams("wild")
	require.Less(t, calm.NoiseScale, normal.NoiseScale)
	require.Less(t, normal.NoiseScale, wild.NoiseScale)
	require.Equal(t, normal, volatilityParams("unknown"))
}

func TestRandomRegime(t *testing.T) {
	require.Equal(t, Bear, randomRegime(0.1))
	require.Equal(t, Neutral, randomRegime(0.5))
	require.Equal(t, Bull, randomRegime(0.9))
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTickRevertsTowardBaseAndLeavesOwnershipAlone(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	club := ledger.Club{Name: "Harbor", BasePrice: 1000, Value: 2000, LastBidPrice: 1800, Owner: ledger.User("ana"), TotalWins: 7, LevelName: "Contender"}
	at := ledger.Duelist{Name: "Kai", BasePrice: 500, Value: 500, ExpectedSalary: 50}
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.InsertClub(ctx, &club); err != nil {
			return err
		}
		return tx.InsertDuelist(ctx, &at)
	}))

	d := NewDrifter(store, slog.New(slog.NewTextHandler(io.Discard, nil)), "calm")
	// A flat 0.5 means no noise, no shocks and no regime change.
	d.SetRand(func() float64 { return 0.5 })
	res, err := d.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, TickResult{Regime: Neutral, Clubs: 1, Duelists: 1}, res)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		got, err := tx.Club(ctx, club.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1941), got.Value)
		require.Equal(t, club.Owner, got.Owner)
		require.Equal(t, club.LastBidPrice, got.LastBidPrice)
		require.Equal(t, club.TotalWins, got.TotalWins)

		p, err := tx.Duelist(ctx, at.ID)
		require.NoError(t, err)
		require.Equal(t, int64(500), p.Value)
		return nil
	}))
}

func TestTickKeepsValuesPositive(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		for i := 0; i < 5; i++ {
			c := ledger.Club{Name: "Club", BasePrice: 3, Value: 3}
			if err := tx.InsertClub(ctx, &c); err != nil {
				return err
			}
		}
		return nil
	}))

	d := NewDrifter(store, nil, "wild")
	d.SetRand(rand.New(rand.NewSource(7)).Float64)
	for i := 0; i < 50; i++ {
		_, err := d.Tick(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		clubs, err := tx.Clubs(ctx)
		require.NoError(t, err)
		for _, c := range clubs {
			require.GreaterOrEqual(t, c.Value, int64(1))
		}
		return nil
	}))
}
