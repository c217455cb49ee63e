package entity

import "time"

// ReportingCurrency is the currency all wallet valuations are expressed in.
const ReportingCurrency = "USD"

// CryptoRate is a normalized entry of the crypto rate table.
// Pair is never empty and Rate is always positive once the entry has been normalized.
type CryptoRate struct {
	Pair      string    `json:"pair"`
	Rate      float64   `json:"rate"`
	Change24h *float64  `json:"change_24h,omitempty"`
	Volume24h *float64  `json:"volume_24h,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RawCryptoRate is the gateway representation of a crypto rate entry.
// Разные версии бэкенда называют пару по-разному, поэтому поля дублируются.
type RawCryptoRate struct {
	Pair      string   `json:"pair"`
	Symbol    string   `json:"symbol"`
	Base      string   `json:"base"`
	Quote     string   `json:"quote"`
	Rate      float64  `json:"rate"`
	Price     float64  `json:"price"`
	Change24h *float64 `json:"change_24h"`
	Volume24h *float64 `json:"volume_24h"`
	UpdatedAt string   `json:"updated_at"`
}

// FiatRates holds the fiat table: 1 unit of Base = Rates[code] units of code.
type FiatRates struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// RateSnapshot is the persisted form of the rate store.
type RateSnapshot struct {
	Crypto      []CryptoRate       `json:"crypto"`
	Fiat        map[string]float64 `json:"fiat"`
	LastFetched time.Time          `json:"last_fetched"`
}

// SourceStatus describes the outcome of fetching a single rate source.
type SourceStatus struct {
	Source string `json:"source"`
	OK     bool   `json:"ok"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// RatesFetchResult reports every rate source separately, a failure of one source
// does not invalidate the other.
type RatesFetchResult struct {
	Crypto    SourceStatus `json:"crypto"`
	Fiat      SourceStatus `json:"fiat"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// AnyOK reports whether at least one source was refreshed.
func (r RatesFetchResult) AnyOK() bool {
	return r.Crypto.OK || r.Fiat.OK
}
