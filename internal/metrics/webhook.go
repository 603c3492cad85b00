package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var webhookTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lotto_webhook_events_total",
		Help: "Payment webhook deliveries by provider and outcome",
	},
	[]string{"provider", "outcome"},
)

// RecordWebhook outcome: credited | duplicate | already_credited | unresolved | ignored | rejected | error
func RecordWebhook(provider, outcome string) {
	webhookTotal.WithLabelValues(provider, outcome).Inc()
}
