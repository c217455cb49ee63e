package storage

import (
	"context"
	"strings"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"

	"github.com/pkg/errors"
)

// TokenStore keeps the auth tokens and cached user the same way the web client
// keeps them in local storage: raw strings under accessToken/refreshToken, JSON under user.
type TokenStore struct {
	kv port.KeyValueStore
}

// NewTokenStore wraps kv.
func NewTokenStore(kv port.KeyValueStore) *TokenStore {
	return &TokenStore{kv: kv}
}

// AccessToken returns the stored bearer token, "" when none is stored.
func (t *TokenStore) AccessToken(ctx context.Context) (string, error) {
	data, err := t.kv.Get(ctx, port.KeyAccessToken)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SetTokens stores a fresh token pair.
func (t *TokenStore) SetTokens(ctx context.Context, access, refresh string) error {
	if err := t.kv.Set(ctx, port.KeyAccessToken, []byte(access)); err != nil {
		return err
	}
	if refresh == "" {
		return nil
	}
	return t.kv.Set(ctx, port.KeyRefreshToken, []byte(refresh))
}

// SetUser caches the profile of the signed-in user.
func (t *TokenStore) SetUser(ctx context.Context, p *entity.Profile) error {
	return SaveJSON(ctx, t.kv, port.KeyUser, p)
}

// User returns the cached profile, nil when absent or malformed.
func (t *TokenStore) User(ctx context.Context) *entity.Profile {
	var p entity.Profile
	if err := LoadJSON(ctx, t.kv, port.KeyUser, &p); err != nil {
		return nil
	}
	return &p
}

// Clear removes tokens and the cached user, called when the gateway answers 401.
func (t *TokenStore) Clear(ctx context.Context) error {
	for _, key := range []string{port.KeyAccessToken, port.KeyRefreshToken, port.KeyUser} {
		if err := t.kv.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
