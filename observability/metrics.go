// Package observability exposes the pool's Prometheus instrumentation.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the daemon registers.
type Metrics struct {
	DepositsTotal       prometheus.Counter
	WithdrawalsTotal    *prometheus.CounterVec
	ClaimsTotal         prometheus.Counter
	CancelsTotal        prometheus.Counter
	RebalanceRuns       *prometheus.CounterVec
	RebalanceDuration   prometheus.Histogram
	QueueDepth          prometheus.Gauge
	OutstandingQueued   prometheus.Gauge
	NetAssetValue       prometheus.Gauge
	RequestsInFlight    prometheus.Gauge
	RequestDuration     *prometheus.HistogramVec
	RequestsRateLimited prometheus.Counter
}

// New registers the pool collectors on the given registry. Passing nil uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		DepositsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "liquidpool",
			Name:      "deposits_total",
			Help:      "Number of successful deposits.",
		}),
		WithdrawalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liquidpool",
			Name:      "withdrawals_total",
			Help:      "Number of withdrawals, partitioned by settlement outcome.",
		}, []string{"outcome"}),
		ClaimsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "liquidpool",
			Name:      "claims_total",
			Help:      "Number of withdrawal requests claimed.",
		}),
		CancelsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "liquidpool",
			Name:      "cancels_total",
			Help:      "Number of withdrawal requests canceled.",
		}),
		RebalanceRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liquidpool",
			Name:      "rebalance_runs_total",
			Help:      "Number of rebalance cycles, partitioned by result.",
		}, []string{"result"}),
		RebalanceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "liquidpool",
			Name:      "rebalance_duration_seconds",
			Help:      "Wall time of a rebalance cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "liquidpool",
			Name:      "withdrawal_queue_depth",
			Help:      "Pending withdrawal requests.",
		}),
		OutstandingQueued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "liquidpool",
			Name:      "withdrawal_queue_outstanding",
			Help:      "Total asset amount owed to the withdrawal queue.",
		}),
		NetAssetValue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "liquidpool",
			Name:      "net_asset_value",
			Help:      "Pool net asset value in base units.",
		}),
		RequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "liquidpool",
			Subsystem: "gateway",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "liquidpool",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		RequestsRateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "liquidpool",
			Subsystem: "gateway",
			Name:      "requests_rate_limited_total",
			Help:      "HTTP requests rejected by the rate limiter.",
		}),
	}
}
