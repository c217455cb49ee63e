package port

import (
	"context"

	"balance_aggregator/internal/domain/entity"
)

// BalanceAggregator values a heterogeneous wallet set in the reporting currency.
type BalanceAggregator interface {
	CalculateBalances(wallets []entity.Wallet) ([]entity.Wallet, entity.AggregateBalance)
	FetchWallets(ctx context.Context) error
	Initialize(ctx context.Context)
	State() entity.WalletState
}
