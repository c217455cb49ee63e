package entity

import "strings"

// Wallet kinds.
const (
	WalletKindFiat   = "fiat"
	WalletKindCrypto = "crypto"
)

var cryptoCurrencies = map[string]struct{}{
	"BTC":  {},
	"ETH":  {},
	"USDT": {},
	"USDC": {},
	"BNB":  {},
	"XRP":  {},
	"SOL":  {},
}

// IsCryptoCurrency reports whether code belongs to the recognized crypto set.
func IsCryptoCurrency(code string) bool {
	_, ok := cryptoCurrencies[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Wallet is a user wallet as returned by the wallet service.
// Balance is kept as a string to avoid float rounding on the wire.
type Wallet struct {
	ID         string   `json:"id"`
	Currency   string   `json:"currency"`
	Balance    string   `json:"balance"`
	Kind       string   `json:"kind,omitempty"`
	WalletType string   `json:"wallet_type,omitempty"`
	Type       string   `json:"type,omitempty"`
	USDRate    *float64 `json:"usd_rate,omitempty"`
	USDValue   float64  `json:"usd_value"`
}

// IsCrypto reports whether the wallet counts towards the crypto subtotal.
func (w Wallet) IsCrypto() bool {
	return IsCryptoCurrency(w.Currency) || strings.EqualFold(w.Kind, WalletKindCrypto)
}
