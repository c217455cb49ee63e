package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"
	"balance_aggregator/internal/infrastructure/storage"
	"balance_aggregator/internal/pkg/metrics"
	"balance_aggregator/internal/pkg/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BalanceAggregatorImpl implements port.BalanceAggregator.
type BalanceAggregatorImpl struct {
	wallets port.WalletSource
	rates   port.RateStore
	kv      port.KeyValueStore
	logger  port.Logger
	now     func() time.Time

	mu        sync.RWMutex
	snapshot  entity.WalletSnapshot
	lastError string
	loading   int
}

// NewBalanceAggregator creates a new instance of BalanceAggregatorImpl. kv may be nil.
func NewBalanceAggregator(ws port.WalletSource, rs port.RateStore, kv port.KeyValueStore, l port.Logger) *BalanceAggregatorImpl {
	return &BalanceAggregatorImpl{
		wallets: ws,
		rates:   rs,
		kv:      kv,
		logger:  l,
		now:     time.Now,
		snapshot: entity.WalletSnapshot{
			Wallets: []entity.Wallet{},
			Totals:  entity.AggregateBalance{Currency: entity.ReportingCurrency},
		},
	}
}

// CalculateBalances implements port.BalanceAggregator. Функция чистая: входной срез
// не меняется, USDValue проставляется в возвращаемой копии.
func (a *BalanceAggregatorImpl) CalculateBalances(wallets []entity.Wallet) ([]entity.Wallet, entity.AggregateBalance) {
	out := make([]entity.Wallet, len(wallets))
	total := decimal.Zero
	crypto := decimal.Zero

	for i, w := range wallets {
		balance := utils.ParseDecimalOrZero(w.Balance)

		var rate float64
		if w.USDRate != nil {
			rate = *w.USDRate
		} else {
			rate = a.rates.GetRate(w.Currency, entity.ReportingCurrency)
		}

		value := balance.Mul(utils.DecimalFromRate(rate))
		w.USDValue = value.InexactFloat64()
		out[i] = w

		total = total.Add(value)
		if w.IsCrypto() {
			crypto = crypto.Add(value)
		}
	}

	return out, entity.AggregateBalance{
		Currency:       entity.ReportingCurrency,
		Total:          utils.RoundCents(total),
		CryptoSubtotal: utils.RoundCents(crypto),
	}
}

// FetchWallets implements port.BalanceAggregator. Кошельки и курсы запрашиваются
// параллельно; при ошибке остается последний снимок, а ошибка записывается в состояние.
func (a *BalanceAggregatorImpl) FetchWallets(ctx context.Context) error {
	a.setLoading(1)
	defer a.setLoading(-1)

	var (
		wallets    []entity.Wallet
		walletsErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		wallets, walletsErr = a.wallets.GetWallets(ctx)
		return nil
	})
	g.Go(func() error {
		a.rates.FetchRates(ctx)
		return nil
	})
	_ = g.Wait()

	if walletsErr != nil {
		metrics.WalletFetches.WithLabelValues(metrics.OutcomeFailure).Inc()
		a.logger.Error("Failed to fetch wallets, keeping last known snapshot", "error", walletsErr)
		a.mu.Lock()
		a.lastError = walletsErr.Error()
		a.mu.Unlock()
		return walletsErr
	}

	for i := range wallets {
		wallets[i].Kind = NormalizeWalletKind(wallets[i])
	}
	valued, totals := a.CalculateBalances(wallets)

	snap := entity.WalletSnapshot{
		Wallets:     valued,
		Totals:      totals,
		LastUpdated: a.now(),
	}

	// Last write wins: overlapping fetches are not sequenced.
	a.mu.Lock()
	a.snapshot = snap
	a.lastError = ""
	a.mu.Unlock()

	metrics.WalletFetches.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.BalanceTotalUSD.Set(totals.Total)
	metrics.BalanceCryptoUSD.Set(totals.CryptoSubtotal)

	a.logger.Info("Wallets fetched and valued",
		"wallets", len(valued), "total_usd", totals.Total, "crypto_usd", totals.CryptoSubtotal)

	if a.kv != nil {
		if err := storage.SaveJSON(ctx, a.kv, port.KeyWalletStore, snap); err != nil {
			a.logger.Warn("Failed to persist wallet snapshot", "error", err)
		}
	}
	return nil
}

// Initialize implements port.BalanceAggregator: best-effort hydration from storage.
func (a *BalanceAggregatorImpl) Initialize(ctx context.Context) {
	if a.kv == nil {
		return
	}
	var snap entity.WalletSnapshot
	if err := storage.LoadJSON(ctx, a.kv, port.KeyWalletStore, &snap); err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			a.logger.Warn("Ignoring unreadable persisted wallet snapshot", "error", err)
		}
		return
	}
	if snap.Wallets == nil {
		snap.Wallets = []entity.Wallet{}
	}
	if snap.Totals.Currency == "" {
		snap.Totals.Currency = entity.ReportingCurrency
	}

	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()
	a.logger.Info("Wallet store hydrated from storage", "wallets", len(snap.Wallets), "last_updated", snap.LastUpdated)
}

// State implements port.BalanceAggregator.
func (a *BalanceAggregatorImpl) State() entity.WalletState {
	a.mu.RLock()
	defer a.mu.RUnlock()

	wallets := make([]entity.Wallet, len(a.snapshot.Wallets))
	copy(wallets, a.snapshot.Wallets)
	snap := a.snapshot
	snap.Wallets = wallets
	return entity.WalletState{
		Snapshot:  snap,
		LastError: a.lastError,
		Loading:   a.loading > 0,
	}
}

func (a *BalanceAggregatorImpl) setLoading(delta int) {
	a.mu.Lock()
	a.loading += delta
	a.mu.Unlock()
}

// NormalizeWalletKind returns "crypto" or "fiat" from wallet_type, then type,
// then the recognized crypto currency set.
func NormalizeWalletKind(w entity.Wallet) string {
	for _, src := range []string{w.WalletType, w.Type, w.Kind} {
		switch strings.ToLower(strings.TrimSpace(src)) {
		case entity.WalletKindCrypto:
			return entity.WalletKindCrypto
		case entity.WalletKindFiat:
			return entity.WalletKindFiat
		}
	}
	if entity.IsCryptoCurrency(w.Currency) {
		return entity.WalletKindCrypto
	}
	return entity.WalletKindFiat
}
