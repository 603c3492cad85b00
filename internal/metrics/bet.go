package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotto_bet_requests_total",
			Help: "Total bet placement requests by result",
		},
		[]string{"result"},
	)

	betDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lotto_bet_request_duration_ms",
			Help:    "Bet placement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	ledgerAuditFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lotto_ledger_audit_failures_total",
			Help: "Transaction appends that failed after a committed balance mutation",
		},
		[]string{"type"},
	)
)

// RecordBet result: created | replayed | conflict | insufficient | invalid | fail
func RecordBet(result string, started time.Time) {
	betTotal.WithLabelValues(result).Inc()
	betDuration.WithLabelValues(result).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordLedgerAuditFailure 记录流水写入失败（余额变更未回滚）
func RecordLedgerAuditFailure(txType string) {
	ledgerAuditFailures.WithLabelValues(txType).Inc()
}
