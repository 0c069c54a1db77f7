package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BidwallMetrics tracks engine activity for the liquidity wall module.
type BidwallMetrics struct {
	deposits    *prometheus.CounterVec
	repositions *prometheus.CounterVec
	closes      prometheus.Counter
	rewards     prometheus.Counter
	duration    prometheus.Histogram
}

var (
	bidwallOnce     sync.Once
	bidwallRegistry *BidwallMetrics
)

// Bidwall returns the lazily-initialised metrics registry for the wall
// engine.
func Bidwall() *BidwallMetrics {
	bidwallOnce.Do(func() {
		bidwallRegistry = &BidwallMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bidwall_deposits_total",
				Help: "Count of fee deposits by outcome.",
			}, []string{"outcome"}),
			repositions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bidwall_repositions_total",
				Help: "Count of completed wall repositions by trigger.",
			}, []string{"trigger"}),
			closes: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bidwall_closes_total",
				Help: "Count of wall closes, including disable-triggered ones.",
			}),
			rewards: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bidwall_reward_transfers_total",
				Help: "Count of realized-gain transfers forwarded to treasuries.",
			}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "bidwall_reposition_duration_seconds",
				Help:    "Latency distribution of the remove-recompute-add sequence.",
				Buckets: prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			bidwallRegistry.deposits,
			bidwallRegistry.repositions,
			bidwallRegistry.closes,
			bidwallRegistry.rewards,
			bidwallRegistry.duration,
		)
	})
	return bidwallRegistry
}

// ObserveDeposit records a deposit outcome.
func (m *BidwallMetrics) ObserveDeposit(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.deposits.WithLabelValues(outcome).Inc()
}

// ObserveReposition records a completed reposition and its duration.
func (m *BidwallMetrics) ObserveReposition(trigger string, seconds float64) {
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "unknown"
	}
	m.repositions.WithLabelValues(trigger).Inc()
	m.duration.Observe(seconds)
}

// ObserveClose records a completed close.
func (m *BidwallMetrics) ObserveClose() {
	if m == nil {
		return
	}
	m.closes.Inc()
}

// ObserveRewardTransfer records a treasury forwarding.
func (m *BidwallMetrics) ObserveRewardTransfer() {
	if m == nil {
		return
	}
	m.rewards.Inc()
}
