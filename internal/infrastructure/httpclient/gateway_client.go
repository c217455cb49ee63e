package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"
	"balance_aggregator/internal/infrastructure/configloader"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenSource provides the bearer token and drops it when the gateway rejects it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// GatewayClient talks to the backend gateway. It implements port.RateSource,
// port.WalletSource and port.ProfileSource.
type GatewayClient struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	paths   configloader.GatewayPaths
	tokens  TokenSource
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGatewayClient creates a new instance of GatewayClient.
func NewGatewayClient(cfg configloader.GatewayConfig, tokens TokenSource, logger *zap.Logger) *GatewayClient {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.BurstLimit
	if burst <= 0 {
		burst = 1
	}
	return &GatewayClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: time.Duration(cfg.RequestTimeoutMillis) * time.Millisecond,
		paths:   cfg.Paths,
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("GatewayClient"),
	}
}

// GetProfile implements port.ProfileSource.
func (c *GatewayClient) GetProfile(ctx context.Context) (*entity.Profile, error) {
	raw, err := c.get(ctx, c.paths.Profile, nil)
	if err != nil {
		return nil, err
	}
	data, err := unwrapData(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	// Некоторые версии auth-service кладут профиль в {"user": {...}}.
	var wrapped struct {
		User jsoniter.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && isPresent(wrapped.User) {
		data = wrapped.User
	}

	var dto struct {
		ID        jsoniter.RawMessage `json:"id"`
		Email     string              `json:"email"`
		FirstName string              `json:"first_name"`
		LastName  string              `json:"last_name"`
		Phone     string              `json:"phone"`
	}
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &entity.Profile{
		ID:        rawScalar(dto.ID),
		Email:     dto.Email,
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
		Phone:     dto.Phone,
	}, nil
}

type walletDTO struct {
	ID         jsoniter.RawMessage `json:"id"`
	Currency   string              `json:"currency"`
	Balance    jsoniter.RawMessage `json:"balance"`
	WalletType string              `json:"wallet_type"`
	Type       string              `json:"type"`
	USDRate    *float64            `json:"usd_rate"`
}

// GetWallets implements port.WalletSource.
func (c *GatewayClient) GetWallets(ctx context.Context) ([]entity.Wallet, error) {
	raw, err := c.get(ctx, c.paths.Wallets, nil)
	if err != nil {
		return nil, err
	}
	data, err := unwrapData(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode wallets: %w", err)
	}

	var dtos []walletDTO
	if err := decodeList(data, "wallets", &dtos); err != nil {
		return nil, fmt.Errorf("failed to decode wallets: %w", err)
	}

	wallets := make([]entity.Wallet, 0, len(dtos))
	for _, d := range dtos {
		wallets = append(wallets, entity.Wallet{
			ID:         rawScalar(d.ID),
			Currency:   strings.ToUpper(strings.TrimSpace(d.Currency)),
			Balance:    rawScalar(d.Balance),
			WalletType: d.WalletType,
			Type:       d.Type,
			USDRate:    d.USDRate,
		})
	}
	c.logger.Debug("Wallets fetched", zap.Int("count", len(wallets)))
	return wallets, nil
}

// GetCryptoRates implements port.RateSource.
func (c *GatewayClient) GetCryptoRates(ctx context.Context) ([]entity.RawCryptoRate, error) {
	raw, err := c.get(ctx, c.paths.CryptoRates, nil)
	if err != nil {
		return nil, err
	}
	data, err := unwrapData(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode crypto rates: %w", err)
	}
	var rates []entity.RawCryptoRate
	if err := decodeList(data, "rates", &rates); err != nil {
		return nil, fmt.Errorf("failed to decode crypto rates: %w", err)
	}
	c.logger.Debug("Crypto rates fetched", zap.Int("count", len(rates)))
	return rates, nil
}

// GetFiatRates implements port.RateSource.
func (c *GatewayClient) GetFiatRates(ctx context.Context, base string) (*entity.FiatRates, error) {
	q := url.Values{}
	q.Set("base", base)
	raw, err := c.get(ctx, c.paths.FiatRates, q)
	if err != nil {
		return nil, err
	}
	data, err := unwrapData(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fiat rates: %w", err)
	}
	var dto struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode fiat rates: %w", err)
	}
	if dto.Base == "" {
		dto.Base = base
	}
	rates := make(map[string]float64, len(dto.Rates))
	for code, v := range dto.Rates {
		rates[strings.ToUpper(code)] = v
	}
	c.logger.Debug("Fiat rates fetched", zap.String("base", dto.Base), zap.Int("count", len(rates)))
	return &entity.FiatRates{Base: strings.ToUpper(dto.Base), Rates: rates, UpdatedAt: time.Now()}, nil
}

func (c *GatewayClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			c.logger.Warn("Failed to read access token, sending request without it", zap.Error(err))
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	c.logger.Debug("Requesting gateway", zap.String("url", requestURL))

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to execute request to gateway", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to execute request to gateway (with default timeout)", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s with default timeout: %w", requestURL, err)
		}
	}

	if resp.StatusCode() == fasthttp.StatusUnauthorized {
		c.logger.Warn("Gateway rejected the access token, clearing stored tokens", zap.String("url", requestURL))
		if c.tokens != nil {
			if err := c.tokens.Clear(ctx); err != nil {
				c.logger.Error("Failed to clear stored tokens", zap.Error(err))
			}
		}
		return nil, port.ErrUnauthorized
	}

	// Тело принадлежит resp и будет переиспользовано после ReleaseResponse.
	body := append([]byte(nil), resp.Body()...)

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Gateway request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", body),
		)
		return nil, fmt.Errorf("gateway request to %s failed with status %d: %s", requestURL, resp.StatusCode(), string(body))
	}
	return body, nil
}

// unwrapData returns the "data" member of a {"data": ...} envelope, or raw itself.
func unwrapData(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if trimmed[0] != '{' {
		return trimmed, nil
	}
	var envelope struct {
		Data jsoniter.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if isPresent(envelope.Data) {
		return envelope.Data, nil
	}
	return trimmed, nil
}

// decodeList decodes either a bare JSON array or an object holding the array under field.
func decodeList(data []byte, field string, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, v)
	}
	var obj map[string]jsoniter.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	list, ok := obj[field]
	if !ok || !isPresent(list) {
		return fmt.Errorf("response has no %q list", field)
	}
	return json.Unmarshal(list, v)
}

func isPresent(raw jsoniter.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}

// rawScalar renders a JSON string or number as a plain string, "" for null or absent.
func rawScalar(raw jsoniter.RawMessage) string {
	if !isPresent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
