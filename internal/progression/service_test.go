package progression

import (
	"context"
	"path/filepath"
	"testing"

	"auctionhouse/internal/ledger"
	"auctionhouse/internal/ledger/sqlite"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, nil, nil, Config{WinValue: 100, LossValue: 50}), store
}

func insertClub(t *testing.T, store ledger.Store, c ledger.Club) ledger.Club {
	t.Helper()
	require.NoError(t, store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertClub(ctx, &c)
	}))
	return c
}

func TestRecordBattle(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	winner := insertClub(t, store, ledger.Club{Name: "Harbor", BasePrice: 1000, Value: 1000, TotalWins: 4, LevelName: "Rookie"})
	loser := insertClub(t, store, ledger.Club{Name: "Cliffside", BasePrice: 1000, Value: 30, LevelName: "Rookie"})

	res, err := svc.RecordBattle(ctx, winner.ID, loser.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), res.Winner.TotalWins)
	require.Equal(t, "Contender", res.Winner.Level)
	require.Equal(t, int64(1000+100+500), res.Winner.ValueAfter)
	require.Equal(t, int64(0), res.Loser.ValueAfter)
	require.Equal(t, int64(0), res.Loser.TotalWins)

	st, err := svc.Standing(ctx, winner.ID)
	require.NoError(t, err)
	require.Equal(t, "Contender", st.Level)
	require.Equal(t, int64(10), st.WinsRemaining)
}

func TestRecordBattleRejectsSelfAndUnknown(t *testing.T) {
	svc, store := newTestService(t)
	club := insertClub(t, store, ledger.Club{Name: "Harbor", BasePrice: 1000, Value: 1000})

	_, err := svc.RecordBattle(context.Background(), club.ID, club.ID)
	require.ErrorIs(t, err, ledger.ErrSelfTrade)
	_, err = svc.RecordBattle(context.Background(), club.ID, 404)
	require.ErrorIs(t, err, ledger.ErrUnknownItem)
}

func TestGrantWinsCrossesSeveralThresholds(t *testing.T) {
	svc, store := newTestService(t)
	club := insertClub(t, store, ledger.Club{Name: "Harbor", BasePrice: 1000, Value: 1000, TotalWins: 3, LevelName: "Rookie"})

	change, err := svc.GrantWins(context.Background(), club.ID, 30)
	require.NoError(t, err)
	require.Equal(t, int64(33), change.TotalWins)
	require.Equal(t, "Champion", change.Level)
	require.Len(t, change.LevelsUp, 3)
	require.Equal(t, int64(1000+500+1500+3000), change.ValueAfter)

	_, err = svc.GrantWins(context.Background(), club.ID, 0)
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
}
