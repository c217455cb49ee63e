package entity

import "time"

// WalletSnapshot is what the wallet store persists between sessions.
type WalletSnapshot struct {
	Wallets     []Wallet         `json:"wallets"`
	Totals      AggregateBalance `json:"totals"`
	LastUpdated time.Time        `json:"last_updated"`
}

// WalletState is the wallet store as seen by callers: the last known snapshot
// plus the error of the most recent fetch, if it failed.
type WalletState struct {
	Snapshot  WalletSnapshot `json:"snapshot"`
	LastError string         `json:"last_error,omitempty"`
	Loading   bool           `json:"loading"`
}
