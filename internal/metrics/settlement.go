package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settleRuns = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lotto_settle_run_duration_ms",
			Help:    "Settlement run duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		},
		[]string{"trigger"},
	)

	settledBets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotto_settled_bets_total",
			Help: "Per-bet settlement outcomes",
		},
		[]string{"trigger", "outcome"},
	)
)

// RecordSettleRun trigger: bulk | recheck | manual
func RecordSettleRun(trigger string, started time.Time) {
	settleRuns.WithLabelValues(trigger).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordSettledBet outcome: won | nao_premiado | paid | lost | skipped | error | conflict
func RecordSettledBet(trigger, outcome string) {
	settledBets.WithLabelValues(trigger, outcome).Inc()
}
