// Package metrics exposes prometheus counters for the game core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baucua_bet_requests_total",
			Help: "Total bet requests by result and kind",
		},
		[]string{"result", "kind"},
	)

	roundsSettled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "baucua_rounds_settled_total",
			Help: "Total settled rounds",
		},
	)

	settleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "baucua_settle_duration_ms",
			Help:    "Settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "baucua_ws_connections",
			Help: "Open websocket connections",
		},
	)
)

// RecordBet records one bet request. result is "success" or "fail"; kind is
// "single", "batch" or "cancel".
func RecordBet(result, kind string) {
	if result != "success" {
		result = "fail"
	}
	betTotal.WithLabelValues(result, kind).Inc()
}

// RecordSettlement records one settled round and its duration.
func RecordSettlement(started time.Time) {
	roundsSettled.Inc()
	settleDuration.Observe(float64(time.Since(started).Milliseconds()))
}

// ConnOpened tracks a websocket connection being opened.
func ConnOpened() { wsConnections.Inc() }

// ConnClosed tracks a websocket connection being closed.
func ConnClosed() { wsConnections.Dec() }
