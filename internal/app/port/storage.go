package port

import (
	"context"
	"errors"
)

// Well-known storage keys. Каждый стор хранит свой JSON под собственным ключом.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyWalletStore  = "wallet_store"
	KeyRateStore    = "rate_store"
)

// ErrNotFound is returned by KeyValueStore.Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// KeyValueStore is the client-side persistent storage, keyed by store name.
// Values are opaque blobs, usually JSON.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
