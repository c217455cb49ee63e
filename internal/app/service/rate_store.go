package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"
	"balance_aggregator/internal/infrastructure/storage"
	"balance_aggregator/internal/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	sourceCrypto = "crypto"
	sourceFiat   = "fiat"
)

// fallbackUSDPrices are approximate USD prices of major currencies, used only
// when a side of a pair cannot be resolved from the fetched tables.
var fallbackUSDPrices = map[string]float64{
	"USD": 1,
	"EUR": 1.08,
	"GBP": 1.27,
	"XOF": 0.00165,
	"XAF": 0.00165,
	"BTC": 43000,
	"ETH": 2300,
	"SOL": 100,
}

// RateStoreImpl implements port.RateStore.
type RateStoreImpl struct {
	source port.RateSource
	kv     port.KeyValueStore
	logger port.Logger
	now    func() time.Time

	mu          sync.RWMutex
	crypto      []entity.CryptoRate
	cryptoIndex map[string]float64 // upper-case pair name -> rate
	fiat        map[string]float64 // 1 USD = X code
	lastFetched time.Time
}

// NewRateStore creates an empty rate store. kv may be nil, then nothing is persisted.
func NewRateStore(source port.RateSource, kv port.KeyValueStore, l port.Logger) *RateStoreImpl {
	return &RateStoreImpl{
		source:      source,
		kv:          kv,
		logger:      l,
		now:         time.Now,
		cryptoIndex: make(map[string]float64),
		fiat:        make(map[string]float64),
	}
}

// GetRate implements port.RateStore. Возвращает 0, если пару посчитать нельзя;
// вызывающий код обязан трактовать 0 как "не конвертируется", а не как "бесплатно".
func (s *RateStoreImpl) GetRate(from, to string) float64 {
	from = normalizeCode(from)
	to = normalizeCode(to)
	if from == to {
		return 1
	}

	s.mu.RLock()
	fromPrice := s.priceInUSDLocked(from)
	toPrice := s.priceInUSDLocked(to)
	s.mu.RUnlock()

	if fromPrice > 0 && toPrice > 0 {
		return fromPrice / toPrice
	}

	if fromPrice <= 0 {
		fromPrice = fallbackUSDPrices[from]
	}
	if toPrice <= 0 {
		toPrice = fallbackUSDPrices[to]
	}
	if fromPrice > 0 && toPrice > 0 {
		s.logger.Debug("Rate resolved from fallback table", "from", from, "to", to)
		return fromPrice / toPrice
	}
	return 0
}

// Convert implements port.RateStore.
func (s *RateStoreImpl) Convert(amount float64, from, to string) (float64, bool) {
	r := s.GetRate(from, to)
	if r == 0 {
		return 0, false
	}
	return amount * r, true
}

// priceInUSDLocked returns the USD price of one unit of code, 0 when unknown.
func (s *RateStoreImpl) priceInUSDLocked(code string) float64 {
	if code == entity.ReportingCurrency {
		return 1
	}
	if x, ok := s.fiat[code]; ok && x > 0 {
		return 1 / x
	}
	for _, pair := range []string{code + "/USD", code + "USD", code + "-USD"} {
		if r, ok := s.cryptoIndex[pair]; ok {
			return r
		}
	}
	if r, ok := s.cryptoIndex["USD/"+code]; ok {
		return 1 / r
	}
	return 0
}

// FetchRates implements port.RateStore. Оба источника запрашиваются параллельно,
// каждый может упасть независимо; таблицы подменяются разом, когда известны оба результата.
func (s *RateStoreImpl) FetchRates(ctx context.Context) entity.RatesFetchResult {
	result := entity.RatesFetchResult{
		Crypto: entity.SourceStatus{Source: sourceCrypto},
		Fiat:   entity.SourceStatus{Source: sourceFiat},
	}

	var (
		cryptoRates []entity.CryptoRate
		fiatRates   map[string]float64
	)

	var g errgroup.Group
	g.Go(func() error {
		raw, err := s.source.GetCryptoRates(ctx)
		if err != nil {
			result.Crypto.Error = err.Error()
			return nil
		}
		cryptoRates = NormalizeCryptoRates(raw, s.now())
		result.Crypto.OK = true
		result.Crypto.Count = len(cryptoRates)
		return nil
	})
	g.Go(func() error {
		fr, err := s.source.GetFiatRates(ctx, entity.ReportingCurrency)
		if err != nil {
			result.Fiat.Error = err.Error()
			return nil
		}
		fiatRates = make(map[string]float64, len(fr.Rates))
		for code, x := range fr.Rates {
			if x > 0 {
				fiatRates[normalizeCode(code)] = x
			}
		}
		result.Fiat.OK = true
		result.Fiat.Count = len(fiatRates)
		return nil
	})
	_ = g.Wait()

	recordSourceMetric(result.Crypto)
	recordSourceMetric(result.Fiat)
	for _, st := range []entity.SourceStatus{result.Crypto, result.Fiat} {
		if !st.OK {
			s.logger.Warn("Rate source fetch failed, keeping previous table", "source", st.Source, "error", st.Error)
		}
	}

	s.mu.Lock()
	if result.Crypto.OK {
		s.setCryptoLocked(cryptoRates)
	}
	if result.Fiat.OK {
		s.fiat = fiatRates
	}
	s.lastFetched = s.now()
	result.FetchedAt = s.lastFetched
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("Rates fetched",
		"crypto_ok", result.Crypto.OK, "crypto_count", result.Crypto.Count,
		"fiat_ok", result.Fiat.OK, "fiat_count", result.Fiat.Count)

	if result.AnyOK() {
		s.persist(ctx, snap)
	}
	return result
}

// Initialize implements port.RateStore: best-effort hydration from storage.
func (s *RateStoreImpl) Initialize(ctx context.Context) {
	if s.kv == nil {
		return
	}
	var snap entity.RateSnapshot
	if err := storage.LoadJSON(ctx, s.kv, port.KeyRateStore, &snap); err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			s.logger.Warn("Ignoring unreadable persisted rate snapshot", "error", err)
		}
		return
	}

	valid := make([]entity.CryptoRate, 0, len(snap.Crypto))
	for _, r := range snap.Crypto {
		if strings.TrimSpace(r.Pair) != "" && r.Rate > 0 {
			valid = append(valid, r)
		}
	}
	fiat := make(map[string]float64, len(snap.Fiat))
	for code, x := range snap.Fiat {
		if x > 0 {
			fiat[normalizeCode(code)] = x
		}
	}

	s.mu.Lock()
	s.setCryptoLocked(valid)
	s.fiat = fiat
	s.lastFetched = snap.LastFetched
	s.mu.Unlock()
	s.logger.Info("Rate store hydrated from storage", "crypto_count", len(valid), "fiat_count", len(fiat))
}

// Snapshot implements port.RateStore and returns a copy of the current tables.
func (s *RateStoreImpl) Snapshot() entity.RateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *RateStoreImpl) snapshotLocked() entity.RateSnapshot {
	crypto := make([]entity.CryptoRate, len(s.crypto))
	copy(crypto, s.crypto)
	fiat := make(map[string]float64, len(s.fiat))
	for k, v := range s.fiat {
		fiat[k] = v
	}
	return entity.RateSnapshot{Crypto: crypto, Fiat: fiat, LastFetched: s.lastFetched}
}

func (s *RateStoreImpl) setCryptoLocked(rates []entity.CryptoRate) {
	index := make(map[string]float64, len(rates))
	for _, r := range rates {
		index[strings.ToUpper(r.Pair)] = r.Rate
	}
	s.crypto = rates
	s.cryptoIndex = index
}

func (s *RateStoreImpl) persist(ctx context.Context, snap entity.RateSnapshot) {
	if s.kv == nil {
		return
	}
	if err := storage.SaveJSON(ctx, s.kv, port.KeyRateStore, snap); err != nil {
		s.logger.Warn("Failed to persist rate snapshot", "error", err)
	}
}

// NormalizeCryptoRates gives every entry a non-empty pair name and drops entries
// that cannot be named or carry no positive rate.
func NormalizeCryptoRates(raw []entity.RawCryptoRate, fetchedAt time.Time) []entity.CryptoRate {
	out := make([]entity.CryptoRate, 0, len(raw))
	for _, r := range raw {
		pair := strings.TrimSpace(r.Pair)
		if pair == "" {
			pair = strings.TrimSpace(r.Symbol)
		}
		if pair == "" && strings.TrimSpace(r.Base) != "" && strings.TrimSpace(r.Quote) != "" {
			pair = strings.TrimSpace(r.Base) + "/" + strings.TrimSpace(r.Quote)
		}
		if pair == "" {
			continue
		}

		rate := r.Rate
		if rate <= 0 {
			rate = r.Price
		}
		if rate <= 0 {
			continue
		}

		updated := fetchedAt
		if r.UpdatedAt != "" {
			if t, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
				updated = t
			}
		}
		out = append(out, entity.CryptoRate{
			Pair:      strings.ToUpper(pair),
			Rate:      rate,
			Change24h: r.Change24h,
			Volume24h: r.Volume24h,
			UpdatedAt: updated,
		})
	}
	return out
}

func recordSourceMetric(st entity.SourceStatus) {
	outcome := metrics.OutcomeSuccess
	if !st.OK {
		outcome = metrics.OutcomeFailure
	}
	metrics.RateFetches.WithLabelValues(st.Source, outcome).Inc()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
