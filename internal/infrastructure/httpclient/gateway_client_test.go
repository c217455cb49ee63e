package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/infrastructure/configloader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTokens struct {
	token   string
	cleared bool
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) { return f.token, nil }
func (f *fakeTokens) Clear(context.Context) error {
	f.cleared = true
	f.token = ""
	return nil
}

func newTestClient(t *testing.T, handler http.Handler, tokens TokenSource) *GatewayClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := configloader.GatewayConfig{
		BaseURL:              srv.URL,
		RequestTimeoutMillis: 2000,
		Paths: configloader.GatewayPaths{
			Profile:     "/auth-service/api/v1/users/profile",
			Wallets:     "/wallet-service/api/v1/wallets",
			CryptoRates: "/exchange-service/api/v1/rates/crypto",
			FiatRates:   "/exchange-service/api/v1/rates/fiat",
		},
	}
	return NewGatewayClient(cfg, tokens, zap.NewNop())
}

func TestGatewayClient_GetWallets_WrappedAndAuthorized(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet-service/api/v1/wallets", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{"wallets":[
			{"id":1,"currency":"usd","balance":"100","wallet_type":"fiat"},
			{"id":"w2","currency":"BTC","balance":0.01,"type":"crypto","usd_rate":43000}
		]}}`))
	})
	c := newTestClient(t, mux, &fakeTokens{token: "secret"})

	wallets, err := c.GetWallets(context.Background())
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, "Bearer secret", gotAuth)

	assert.Equal(t, "1", wallets[0].ID)
	assert.Equal(t, "USD", wallets[0].Currency)
	assert.Equal(t, "100", wallets[0].Balance)
	assert.Equal(t, "fiat", wallets[0].WalletType)
	assert.Nil(t, wallets[0].USDRate)

	assert.Equal(t, "w2", wallets[1].ID)
	assert.Equal(t, "0.01", wallets[1].Balance)
	assert.Equal(t, "crypto", wallets[1].Type)
	require.NotNil(t, wallets[1].USDRate)
	assert.Equal(t, 43000.0, *wallets[1].USDRate)
}

func TestGatewayClient_GetWallets_BareArray(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet-service/api/v1/wallets", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"a","currency":"EUR","balance":"5"}]`))
	})
	c := newTestClient(t, mux, nil)

	wallets, err := c.GetWallets(context.Background())
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "EUR", wallets[0].Currency)
}

func TestGatewayClient_Unauthorized_ClearsTokens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet-service/api/v1/wallets", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	tokens := &fakeTokens{token: "expired"}
	c := newTestClient(t, mux, tokens)

	_, err := c.GetWallets(context.Background())
	assert.ErrorIs(t, err, port.ErrUnauthorized)
	assert.True(t, tokens.cleared)
}

func TestGatewayClient_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/exchange-service/api/v1/rates/crypto", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	c := newTestClient(t, mux, nil)

	_, err := c.GetCryptoRates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGatewayClient_GetCryptoRates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/exchange-service/api/v1/rates/crypto", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"pair":"BTC/USD","rate":43000,"change_24h":1.5},{"symbol":"ETHUSD","price":2300}]}`))
	})
	c := newTestClient(t, mux, nil)

	rates, err := c.GetCryptoRates(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "BTC/USD", rates[0].Pair)
	assert.Equal(t, 43000.0, rates[0].Rate)
	require.NotNil(t, rates[0].Change24h)
	assert.Equal(t, 1.5, *rates[0].Change24h)
	assert.Equal(t, "ETHUSD", rates[1].Symbol)
	assert.Equal(t, 2300.0, rates[1].Price)
}

func TestGatewayClient_GetFiatRates(t *testing.T) {
	var gotBase string
	mux := http.NewServeMux()
	mux.HandleFunc("/exchange-service/api/v1/rates/fiat", func(w http.ResponseWriter, r *http.Request) {
		gotBase = r.URL.Query().Get("base")
		w.Write([]byte(`{"rates":{"eur":0.92,"XOF":605.5}}`))
	})
	c := newTestClient(t, mux, nil)

	fiat, err := c.GetFiatRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, "USD", gotBase)
	assert.Equal(t, "USD", fiat.Base)
	assert.Equal(t, 0.92, fiat.Rates["EUR"])
	assert.Equal(t, 605.5, fiat.Rates["XOF"])
}

func TestGatewayClient_GetProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth-service/api/v1/users/profile", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"user":{"id":42,"email":"user@example.com"}}}`))
	})
	c := newTestClient(t, mux, nil)

	p, err := c.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", p.ID)
	assert.Equal(t, "user@example.com", p.Email)
}

func TestGatewayClient_ContextDeadline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet-service/api/v1/wallets", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`[]`))
	})
	c := newTestClient(t, mux, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.GetWallets(ctx)
	assert.Error(t, err)
}

func TestUnwrapData(t *testing.T) {
	data, err := unwrapData([]byte(`{"data":null,"rates":{}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":null,"rates":{}}`, string(data))

	_, err = unwrapData([]byte("  "))
	assert.Error(t, err)
}
