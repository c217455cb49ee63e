// Package session holds the per-user client context: rate and wallet stores,
// the realtime channel and the refresh loops that keep them current.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"

	"github.com/google/uuid"
)

// Credentials is the token/user storage the session reads at start-up.
type Credentials interface {
	AccessToken(ctx context.Context) (string, error)
	SetUser(ctx context.Context, p *entity.Profile) error
	User(ctx context.Context) *entity.Profile
}

// Deps lists the collaborators of a Session. Channel may be nil when realtime is disabled.
type Deps struct {
	Credentials     Credentials
	Profiles        port.ProfileSource
	Rates           port.RateStore
	Balances        port.BalanceAggregator
	Channel         port.RealtimeChannel
	Logger          port.Logger
	WalletsInterval time.Duration
	RatesInterval   time.Duration
}

// Session owns the stores and the channel for one signed-in user.
type Session struct {
	id   string
	deps Deps

	mu       sync.Mutex
	profile  *entity.Profile
	cancel   context.CancelFunc
	disposed bool
	wg       sync.WaitGroup
}

// New creates a session. Nothing is fetched until Init.
func New(d Deps) *Session {
	return &Session{id: uuid.NewString(), deps: d}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Profile returns the signed-in user, nil before Init or when no token is stored.
func (s *Session) Profile() *entity.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Init hydrates the stores from storage, resolves the user and opens the realtime channel.
// Без токена сессия работает анонимно: только курсы и сохраненный снапшот кошельков.
func (s *Session) Init(ctx context.Context) error {
	l := s.deps.Logger
	s.deps.Rates.Initialize(ctx)
	s.deps.Balances.Initialize(ctx)

	token, err := s.deps.Credentials.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("session: read access token: %w", err)
	}
	if token == "" {
		l.Info("No access token stored, session starts signed out", "session_id", s.id)
		return nil
	}

	profile, err := s.deps.Profiles.GetProfile(ctx)
	switch {
	case errors.Is(err, port.ErrUnauthorized):
		l.Warn("Stored token rejected, session starts signed out", "session_id", s.id)
		return err
	case err != nil:
		cached := s.deps.Credentials.User(ctx)
		if cached == nil {
			return fmt.Errorf("session: fetch profile: %w", err)
		}
		l.Warn("Profile fetch failed, using cached user", "session_id", s.id, "error", err)
		profile = cached
	default:
		if err := s.deps.Credentials.SetUser(ctx, profile); err != nil {
			l.Warn("Failed to cache user profile", "session_id", s.id, "error", err)
		}
	}

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	if s.deps.Channel != nil && profile.ID != "" {
		// При ошибке канал сам запланирует переподключение.
		if err := s.deps.Channel.Connect(ctx, profile.ID); err != nil {
			l.Warn("Realtime channel connect failed", "session_id", s.id, "error", err)
		}
	}
	l.Info("Session initialized", "session_id", s.id, "user_id", profile.ID)
	return nil
}

// StartRefresh starts the periodic wallet and rate refresh loops. A loop with a
// non-positive interval is not started. Calling it twice is a no-op.
func (s *Session) StartRefresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.disposed {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	if s.deps.WalletsInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, "wallets", s.deps.WalletsInterval, s.refreshWallets)
	}
	if s.deps.RatesInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, "rates", s.deps.RatesInterval, s.refreshRates)
	}
}

func (s *Session) loop(ctx context.Context, name string, every time.Duration, fn func(context.Context)) {
	defer s.wg.Done()
	s.deps.Logger.Debug("Refresh loop started", "loop", name, "interval", every.String())

	fn(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.deps.Logger.Debug("Refresh loop stopped", "loop", name)
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (s *Session) refreshWallets(ctx context.Context) {
	if s.Profile() == nil {
		return
	}
	if err := s.deps.Balances.FetchWallets(ctx); err != nil && ctx.Err() == nil {
		s.deps.Logger.Warn("Wallet refresh failed", "session_id", s.id, "error", err)
	}
}

func (s *Session) refreshRates(ctx context.Context) {
	res := s.deps.Rates.FetchRates(ctx)
	if !res.AnyOK() && ctx.Err() == nil {
		s.deps.Logger.Warn("Rate refresh failed",
			"session_id", s.id, "crypto_error", res.Crypto.Error, "fiat_error", res.Fiat.Error)
	}
}

// Dispose stops the refresh loops and closes the realtime channel. Safe to call more than once.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	if s.deps.Channel != nil {
		s.deps.Channel.Disconnect()
	}
	s.deps.Logger.Info("Session disposed", "session_id", s.id)
}
