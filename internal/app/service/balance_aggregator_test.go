package service

import (
	"context"
	"testing"
	"time"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"
	"balance_aggregator/internal/infrastructure/storage"
	"balance_aggregator/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func btcRateStore(t *testing.T) *RateStoreImpl {
	return loadedRateStore(t, &fakeRateSource{crypto: []entity.RawCryptoRate{{Pair: "BTC/USD", Rate: 43000}}})
}

func TestCalculateBalances_Example(t *testing.T) {
	agg := NewBalanceAggregator(&fakeWalletSource{}, btcRateStore(t), nil, logger.NewNop())

	wallets := []entity.Wallet{
		{Currency: "USD", Balance: "100"},
		{Currency: "BTC", Balance: "0.01"},
	}
	valued, totals := agg.CalculateBalances(wallets)

	assert.Equal(t, 530.0, totals.Total)
	assert.Equal(t, 430.0, totals.CryptoSubtotal)
	assert.Equal(t, "USD", totals.Currency)
	assert.Equal(t, 100.0, valued[0].USDValue)
	assert.Equal(t, 430.0, valued[1].USDValue)

	// input is left untouched
	assert.Zero(t, wallets[1].USDValue)
}

func TestCalculateBalances_Idempotent(t *testing.T) {
	agg := NewBalanceAggregator(&fakeWalletSource{}, btcRateStore(t), nil, logger.NewNop())
	wallets := []entity.Wallet{
		{Currency: "USD", Balance: "12.345"},
		{Currency: "BTC", Balance: "0.123456"},
		{Currency: "EUR", Balance: "7"},
	}

	v1, t1 := agg.CalculateBalances(wallets)
	v2, t2 := agg.CalculateBalances(wallets)
	assert.Equal(t, t1, t2)
	assert.Equal(t, v1, v2)
}

func TestCalculateBalances_NonNumericBalanceIsZero(t *testing.T) {
	agg := NewBalanceAggregator(&fakeWalletSource{}, btcRateStore(t), nil, logger.NewNop())

	valued, totals := agg.CalculateBalances([]entity.Wallet{
		{Currency: "BTC", Balance: "N/A"},
		{Currency: "USD", Balance: ""},
		{Currency: "USD", Balance: "10"},
	})
	assert.Equal(t, 10.0, totals.Total)
	assert.Equal(t, 0.0, totals.CryptoSubtotal)
	assert.Equal(t, 0.0, valued[0].USDValue)
}

func TestCalculateBalances_ServerRateWinsAndKind(t *testing.T) {
	agg := NewBalanceAggregator(&fakeWalletSource{}, btcRateStore(t), nil, logger.NewNop())

	_, totals := agg.CalculateBalances([]entity.Wallet{
		{Currency: "BTC", Balance: "1", USDRate: ptr(40000)},
		{Currency: "TRX", Balance: "100", Kind: "crypto", USDRate: ptr(0.1)},
		{Currency: "ZZZ", Balance: "100"},
	})
	assert.Equal(t, 40010.0, totals.Total)
	assert.Equal(t, 40010.0, totals.CryptoSubtotal)
}

func TestCalculateBalances_RoundsHalfUp(t *testing.T) {
	agg := NewBalanceAggregator(&fakeWalletSource{}, btcRateStore(t), nil, logger.NewNop())
	_, totals := agg.CalculateBalances([]entity.Wallet{
		{Currency: "USD", Balance: "1.005"},
	})
	assert.Equal(t, 1.01, totals.Total)
}

func TestNormalizeWalletKind(t *testing.T) {
	assert.Equal(t, "crypto", NormalizeWalletKind(entity.Wallet{WalletType: "CRYPTO", Currency: "USD"}))
	assert.Equal(t, "fiat", NormalizeWalletKind(entity.Wallet{Type: "fiat", Currency: "BTC"}))
	assert.Equal(t, "crypto", NormalizeWalletKind(entity.Wallet{WalletType: "savings", Type: "crypto"}))
	assert.Equal(t, "crypto", NormalizeWalletKind(entity.Wallet{Currency: "usdt"}))
	assert.Equal(t, "fiat", NormalizeWalletKind(entity.Wallet{Currency: "XOF"}))
}

func TestFetchWallets_SuccessPersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	rates := NewRateStore(&fakeRateSource{crypto: []entity.RawCryptoRate{{Pair: "BTC/USD", Rate: 43000}}}, kv, logger.NewNop())
	ws := &fakeWalletSource{wallets: []entity.Wallet{
		{ID: "1", Currency: "USD", Balance: "100", WalletType: "fiat"},
		{ID: "2", Currency: "BTC", Balance: "0.01", Type: "crypto"},
	}}
	agg := NewBalanceAggregator(ws, rates, kv, logger.NewNop())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return fixed }

	require.NoError(t, agg.FetchWallets(ctx))

	state := agg.State()
	assert.Empty(t, state.LastError)
	assert.False(t, state.Loading)
	assert.Equal(t, 530.0, state.Snapshot.Totals.Total)
	assert.Equal(t, 430.0, state.Snapshot.Totals.CryptoSubtotal)
	assert.Equal(t, fixed, state.Snapshot.LastUpdated)
	assert.Equal(t, "fiat", state.Snapshot.Wallets[0].Kind)
	assert.Equal(t, "crypto", state.Snapshot.Wallets[1].Kind)

	var persisted entity.WalletSnapshot
	require.NoError(t, storage.LoadJSON(ctx, kv, port.KeyWalletStore, &persisted))
	assert.Equal(t, state.Snapshot.Totals, persisted.Totals)
	assert.Len(t, persisted.Wallets, 2)
}

func TestFetchWallets_FailureKeepsStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	rates := btcRateStore(t)
	ws := &fakeWalletSource{wallets: []entity.Wallet{{Currency: "USD", Balance: "100"}}}
	agg := NewBalanceAggregator(ws, rates, storage.NewMemoryStore(), logger.NewNop())

	require.NoError(t, agg.FetchWallets(ctx))
	ws.err = errBackendDown

	err := agg.FetchWallets(ctx)
	assert.ErrorIs(t, err, errBackendDown)

	state := agg.State()
	assert.Equal(t, errBackendDown.Error(), state.LastError)
	assert.Equal(t, 100.0, state.Snapshot.Totals.Total)
	assert.Len(t, state.Snapshot.Wallets, 1)

	ws.err = nil
	require.NoError(t, agg.FetchWallets(ctx))
	assert.Empty(t, agg.State().LastError)
}

func TestFetchWallets_RatesFailureDoesNotFailWallets(t *testing.T) {
	rates := NewRateStore(&fakeRateSource{cryptoErr: errBackendDown, fiatErr: errBackendDown}, nil, logger.NewNop())
	ws := &fakeWalletSource{wallets: []entity.Wallet{{Currency: "BTC", Balance: "1"}}}
	agg := NewBalanceAggregator(ws, rates, nil, logger.NewNop())

	require.NoError(t, agg.FetchWallets(context.Background()))
	// BTC falls back to the approximate table.
	assert.Equal(t, 43000.0, agg.State().Snapshot.Totals.Total)
}

func TestWalletSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	snap := entity.WalletSnapshot{
		Wallets: []entity.Wallet{
			{ID: "1", Currency: "USD", Balance: "100", Kind: "fiat", USDValue: 100},
			{ID: "2", Currency: "BTC", Balance: "0.01", Kind: "crypto", USDRate: ptr(43000), USDValue: 430},
		},
		Totals:      entity.AggregateBalance{Currency: "USD", Total: 530, CryptoSubtotal: 430},
		LastUpdated: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, storage.SaveJSON(ctx, kv, port.KeyWalletStore, snap))

	agg := NewBalanceAggregator(&fakeWalletSource{}, btcRateStore(t), kv, logger.NewNop())
	agg.Initialize(ctx)

	assert.Equal(t, snap, agg.State().Snapshot)
}

func TestInitialize_ToleratesMalformedStorage(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, port.KeyWalletStore, []byte(`{"wallets": 12`)))

	agg := NewBalanceAggregator(&fakeWalletSource{}, btcRateStore(t), kv, logger.NewNop())
	assert.NotPanics(t, func() { agg.Initialize(ctx) })
	assert.Empty(t, agg.State().Snapshot.Wallets)
	assert.Equal(t, "USD", agg.State().Snapshot.Totals.Currency)
}
