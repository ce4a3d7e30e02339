// Package metrics exposes Prometheus collectors for the ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	claims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coins_catcher",
			Subsystem: "rewards",
			Name:      "claims_total",
			Help:      "Reward claims by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	coinsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coins_catcher",
			Subsystem: "rewards",
			Name:      "coins_awarded_total",
			Help:      "Coins credited by reward claims, bonuses and referrals.",
		},
		[]string{"type"},
	)

	conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coins_catcher",
			Subsystem: "wallet",
			Name:      "conversions_total",
			Help:      "Coin to PKR conversions by outcome.",
		},
		[]string{"outcome"},
	)

	withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coins_catcher",
			Subsystem: "withdrawals",
			Name:      "transitions_total",
			Help:      "Withdrawal/purchase request state transitions.",
		},
		[]string{"kind", "status"},
	)

	adminOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coins_catcher",
			Subsystem: "admin",
			Name:      "operations_total",
			Help:      "Admin mutations by operation.",
		},
		[]string{"operation"},
	)

	txRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coins_catcher",
			Subsystem: "store",
			Name:      "tx_retries_total",
			Help:      "Store transactions re-run after a conflict.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coins_catcher",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coins_catcher",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		claims,
		coinsAwarded,
		conversions,
		withdrawals,
		adminOps,
		txRetries,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordClaim counts a claim attempt. Successful claims also add coins.
func RecordClaim(rewardType, outcome string, coins int64) {
	claims.WithLabelValues(rewardType, outcome).Inc()
	if coins > 0 {
		coinsAwarded.WithLabelValues(rewardType).Add(float64(coins))
	}
}

// RecordAward adds coins credited outside a claim, e.g. referral or bonus.
func RecordAward(txType string, coins int64) {
	if coins > 0 {
		coinsAwarded.WithLabelValues(txType).Add(float64(coins))
	}
}

// RecordConversion counts a conversion attempt.
func RecordConversion(outcome string) {
	conversions.WithLabelValues(outcome).Inc()
}

// RecordWithdrawal counts a request entering status.
func RecordWithdrawal(kind, status string) {
	withdrawals.WithLabelValues(kind, status).Inc()
}

// RecordAdminOp counts an admin mutation.
func RecordAdminOp(operation string) {
	adminOps.WithLabelValues(operation).Inc()
}

// RecordTxRetry counts a retried store transaction.
func RecordTxRetry(int, error) {
	txRetries.Inc()
}

// RecordHTTP records a handled request.
func RecordHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
