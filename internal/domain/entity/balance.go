package entity

// AggregateBalance is the derived valuation of a wallet set in the reporting currency.
// It is never persisted on its own, only as part of WalletSnapshot.
type AggregateBalance struct {
	Currency       string  `json:"currency"`
	Total          float64 `json:"total"`
	CryptoSubtotal float64 `json:"crypto_subtotal"`
}
