package port

import (
	"context"

	"balance_aggregator/internal/domain/entity"
)

// RateStore resolves conversion multipliers between currency codes.
type RateStore interface {
	// GetRate returns the multiplier converting one unit of from into to.
	// 0 means the pair is unconvertible.
	GetRate(from, to string) float64
	// Convert converts amount; ok is false when the pair is unconvertible.
	Convert(amount float64, from, to string) (value float64, ok bool)
	FetchRates(ctx context.Context) entity.RatesFetchResult
	Initialize(ctx context.Context)
	Snapshot() entity.RateSnapshot
}
