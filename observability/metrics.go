package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type saleMetrics struct {
	purchases *prometheus.CounterVec
	claims    *prometheus.CounterVec
	usdRaised prometheus.Counter
	paused    prometheus.Gauge
}

type rpcMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	saleMetricsOnce sync.Once
	saleRegistry    *saleMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics
)

// SaleMetrics returns the lazily-initialised registry recording sale activity.
func SaleMetrics() *saleMetrics {
	saleMetricsOnce.Do(func() {
		saleRegistry = &saleMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "sale",
				Name:      "purchases_total",
				Help:      "Total purchase attempts segmented by payment asset and outcome.",
			}, []string{"asset", "outcome"}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "sale",
				Name:      "claims_total",
				Help:      "Total claim attempts segmented by reward token and outcome.",
			}, []string{"token", "outcome"}),
			usdRaised: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "sale",
				Name:      "usd_raised_wei_total",
				Help:      "Cumulative USD value of settled purchases in 18-decimal units.",
			}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "presale",
				Subsystem: "sale",
				Name:      "paused",
				Help:      "Whether the sale is currently paused (1) or live (0).",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.purchases,
			saleRegistry.claims,
			saleRegistry.usdRaised,
			saleRegistry.paused,
		)
	})
	return saleRegistry
}

// ObservePurchase records a purchase attempt outcome for the payment asset.
func (m *saleMetrics) ObservePurchase(asset string, success bool, usdWei float64) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
		if usdWei > 0 {
			m.usdRaised.Add(usdWei)
		}
	}
	m.purchases.WithLabelValues(asset, outcome).Inc()
}

// ObserveClaim records a claim attempt outcome for the reward token.
func (m *saleMetrics) ObserveClaim(token string, success bool) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	m.claims.WithLabelValues(token, outcome).Inc()
}

// SetPaused publishes the pause flag.
func (m *saleMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

// RPCMetrics returns the lazily-initialised registry recording JSON-RPC
// handler activity.
func RPCMetrics() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "presale",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.errors, rpcRegistry.latency)
	})
	return rpcRegistry
}

// Observe records the outcome of an RPC request. The status code should be
// the HTTP status ultimately written to the response.
func (m *rpcMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}
