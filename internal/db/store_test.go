package db

import (
	"context"
	"path/filepath"
	"testing"

	"auctionhouse/internal/config"
	"auctionhouse/internal/ledger"
	"auctionhouse/internal/ledger/sqlite"

	"github.com/stretchr/testify/require"
)

func TestOpenStoreFallsBackToSQLite(t *testing.T) {
	cfg := config.StoreConfig{SQLitePath: filepath.Join(t.TempDir(), "ledger.db")}

	store, err := OpenStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, ok := store.(*sqlite.Store)
	require.True(t, ok)
	require.NoError(t, store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.CreateWallet(ctx, "ana", 10)
		return err
	}))
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "://nope", "auctionhouse")
	require.Error(t, err)
}
