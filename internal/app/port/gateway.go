package port

import (
	"context"
	"errors"

	"balance_aggregator/internal/domain/entity"
)

// ErrUnauthorized is returned when the gateway rejects the bearer token.
// Stored tokens are already cleared when it is returned.
var ErrUnauthorized = errors.New("gateway: unauthorized")

// RateSource fetches rate tables from the backend.
type RateSource interface {
	GetCryptoRates(ctx context.Context) ([]entity.RawCryptoRate, error)
	// GetFiatRates returns the fiat table against base ("1 base = X code").
	GetFiatRates(ctx context.Context, base string) (*entity.FiatRates, error)
}

// WalletSource fetches the wallet list of the authenticated user.
type WalletSource interface {
	GetWallets(ctx context.Context) ([]entity.Wallet, error)
}

// ProfileSource fetches the authenticated user's profile.
type ProfileSource interface {
	GetProfile(ctx context.Context) (*entity.Profile, error)
}
