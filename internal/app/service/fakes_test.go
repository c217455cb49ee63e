package service

import (
	"context"
	"errors"
	"sync"

	"balance_aggregator/internal/domain/entity"
)

type fakeRateSource struct {
	mu        sync.Mutex
	crypto    []entity.RawCryptoRate
	fiat      map[string]float64
	cryptoErr error
	fiatErr   error
	fiatBase  string
}

func (f *fakeRateSource) GetCryptoRates(context.Context) ([]entity.RawCryptoRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cryptoErr != nil {
		return nil, f.cryptoErr
	}
	return f.crypto, nil
}

func (f *fakeRateSource) GetFiatRates(_ context.Context, base string) (*entity.FiatRates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fiatBase = base
	if f.fiatErr != nil {
		return nil, f.fiatErr
	}
	return &entity.FiatRates{Base: base, Rates: f.fiat}, nil
}

type fakeWalletSource struct {
	wallets []entity.Wallet
	err     error
	calls   int
}

func (f *fakeWalletSource) GetWallets(context.Context) ([]entity.Wallet, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entity.Wallet, len(f.wallets))
	copy(out, f.wallets)
	return out, nil
}

var errBackendDown = errors.New("backend down")

func ptr(v float64) *float64 { return &v }
