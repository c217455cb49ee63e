package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "balance_aggregator"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	RateFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_fetches_total",
		Help:      "Rate table fetches by source and outcome.",
	}, []string{"source", "outcome"})

	WalletFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_fetches_total",
		Help:      "Wallet list fetches by outcome.",
	}, []string{"outcome"})

	BalanceTotalUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "balance_total_usd",
		Help:      "Last computed total balance in USD.",
	})

	BalanceCryptoUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "balance_crypto_usd",
		Help:      "Last computed crypto subtotal in USD.",
	})

	RealtimeReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_reconnects_total",
		Help:      "Scheduled reconnect attempts of the realtime channel.",
	})

	RealtimeMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_messages_total",
		Help:      "Inbound realtime messages by type.",
	}, []string{"type"})

	RealtimeDroppedSends = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_dropped_sends_total",
		Help:      "Outbound messages dropped because the channel was not open.",
	})
)

var registerOnce sync.Once

// MustRegisterMetrics registers all collectors in the default registry. Safe to call twice.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RateFetches,
			WalletFetches,
			BalanceTotalUSD,
			BalanceCryptoUSD,
			RealtimeReconnects,
			RealtimeMessages,
			RealtimeDroppedSends,
		)
	})
}
