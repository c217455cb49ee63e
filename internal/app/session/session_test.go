package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"
	"balance_aggregator/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentials struct {
	token  string
	err    error
	cached *entity.Profile
	saved  *entity.Profile
}

func (f *fakeCredentials) AccessToken(context.Context) (string, error) { return f.token, f.err }
func (f *fakeCredentials) SetUser(_ context.Context, p *entity.Profile) error {
	f.saved = p
	return nil
}
func (f *fakeCredentials) User(context.Context) *entity.Profile { return f.cached }

type fakeProfiles struct {
	profile *entity.Profile
	err     error
}

func (f *fakeProfiles) GetProfile(context.Context) (*entity.Profile, error) { return f.profile, f.err }

type fakeRates struct {
	initialized atomic.Bool
	fetches     atomic.Int32
}

func (f *fakeRates) GetRate(string, string) float64 { return 1 }
func (f *fakeRates) Convert(amount float64, _, _ string) (float64, bool) {
	return amount, true
}
func (f *fakeRates) FetchRates(context.Context) entity.RatesFetchResult {
	f.fetches.Add(1)
	return entity.RatesFetchResult{Crypto: entity.SourceStatus{OK: true}}
}
func (f *fakeRates) Initialize(context.Context) { f.initialized.Store(true) }
func (f *fakeRates) Snapshot() entity.RateSnapshot { return entity.RateSnapshot{} }

type fakeBalances struct {
	initialized atomic.Bool
	fetches     atomic.Int32
}

func (f *fakeBalances) CalculateBalances(w []entity.Wallet) ([]entity.Wallet, entity.AggregateBalance) {
	return w, entity.AggregateBalance{}
}
func (f *fakeBalances) FetchWallets(context.Context) error {
	f.fetches.Add(1)
	return nil
}
func (f *fakeBalances) Initialize(context.Context) { f.initialized.Store(true) }
func (f *fakeBalances) State() entity.WalletState { return entity.WalletState{} }

type fakeChannel struct {
	mu           sync.Mutex
	connectedAs  string
	connects     int
	disconnects  int
	connectError error
}

func (f *fakeChannel) Connect(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.connectedAs = userID
	return f.connectError
}
func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}
func (f *fakeChannel) Send(entity.Envelope) bool { return false }
func (f *fakeChannel) State() string { return "disconnected" }
func (f *fakeChannel) Messages() []entity.ReceivedEnvelope { return nil }

type fixture struct {
	creds    *fakeCredentials
	profiles *fakeProfiles
	rates    *fakeRates
	balances *fakeBalances
	channel  *fakeChannel
	session  *Session
}

func newFixture(token string) *fixture {
	f := &fixture{
		creds:    &fakeCredentials{token: token},
		profiles: &fakeProfiles{profile: &entity.Profile{ID: "42", Email: "a@b.c"}},
		rates:    &fakeRates{},
		balances: &fakeBalances{},
		channel:  &fakeChannel{},
	}
	f.session = New(Deps{
		Credentials:     f.creds,
		Profiles:        f.profiles,
		Rates:           f.rates,
		Balances:        f.balances,
		Channel:         f.channel,
		Logger:          logger.NewNop(),
		WalletsInterval: 20 * time.Millisecond,
		RatesInterval:   20 * time.Millisecond,
	})
	return f
}

func TestInit_SignedInConnectsChannel(t *testing.T) {
	f := newFixture("tok")

	require.NoError(t, f.session.Init(context.Background()))

	assert.True(t, f.rates.initialized.Load())
	assert.True(t, f.balances.initialized.Load())
	assert.Equal(t, "42", f.session.Profile().ID)
	assert.Equal(t, "42", f.creds.saved.ID)
	assert.Equal(t, 1, f.channel.connects)
	assert.Equal(t, "42", f.channel.connectedAs)
	assert.NotEmpty(t, f.session.ID())
}

func TestInit_WithoutTokenStaysSignedOut(t *testing.T) {
	f := newFixture("")

	require.NoError(t, f.session.Init(context.Background()))

	assert.True(t, f.rates.initialized.Load())
	assert.Nil(t, f.session.Profile())
	assert.Zero(t, f.channel.connects)
}

func TestInit_Unauthorized(t *testing.T) {
	f := newFixture("expired")
	f.profiles.err = port.ErrUnauthorized

	err := f.session.Init(context.Background())

	assert.ErrorIs(t, err, port.ErrUnauthorized)
	assert.Nil(t, f.session.Profile())
	assert.Zero(t, f.channel.connects)
}

func TestInit_ProfileFailureFallsBackToCachedUser(t *testing.T) {
	f := newFixture("tok")
	f.profiles.err = errors.New("auth service down")
	f.creds.cached = &entity.Profile{ID: "7"}

	require.NoError(t, f.session.Init(context.Background()))
	assert.Equal(t, "7", f.session.Profile().ID)
	assert.Equal(t, "7", f.channel.connectedAs)

	g := newFixture("tok")
	g.profiles.err = errors.New("auth service down")
	assert.Error(t, g.session.Init(context.Background()))
}

func TestInit_ChannelErrorIsNotFatal(t *testing.T) {
	f := newFixture("tok")
	f.channel.connectError = errors.New("dial failed")

	assert.NoError(t, f.session.Init(context.Background()))
}

func TestStartRefresh_RunsLoopsUntilDispose(t *testing.T) {
	f := newFixture("tok")
	require.NoError(t, f.session.Init(context.Background()))

	f.session.StartRefresh(context.Background())
	f.session.StartRefresh(context.Background())

	require.Eventually(t, func() bool {
		return f.balances.fetches.Load() >= 2 && f.rates.fetches.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	f.session.Dispose()
	walletFetches := f.balances.fetches.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, walletFetches, f.balances.fetches.Load())
	assert.Equal(t, 1, f.channel.disconnects)

	f.session.Dispose()
	assert.Equal(t, 1, f.channel.disconnects)
}

func TestStartRefresh_SignedOutSkipsWallets(t *testing.T) {
	f := newFixture("")
	require.NoError(t, f.session.Init(context.Background()))

	f.session.StartRefresh(context.Background())
	require.Eventually(t, func() bool { return f.rates.fetches.Load() >= 1 }, time.Second, 5*time.Millisecond)
	f.session.Dispose()

	assert.Zero(t, f.balances.fetches.Load())
}

func TestStartRefresh_AfterDisposeIsNoop(t *testing.T) {
	f := newFixture("")
	f.session.Dispose()
	f.session.StartRefresh(context.Background())
	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, f.rates.fetches.Load())
}

func TestNilChannel(t *testing.T) {
	f := newFixture("tok")
	f.session.deps.Channel = nil

	require.NoError(t, f.session.Init(context.Background()))
	assert.NotPanics(t, f.session.Dispose)
}
