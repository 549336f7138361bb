package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(emailsTotal, emailLatencyMs, dispatchDropped)
}

var (
	emailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_emails_total",
			Help: "Claim-link email attempts by result (sent/failed/retried/rejected).",
		},
		[]string{"result"},
	)

	emailLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gift_email_latency_ms",
			Help:    "Email provider call latency in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 6000, 12000},
		},
	)

	dispatchDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gift_dispatch_dropped_total",
			Help: "Notification tasks dropped because the worker queue was full.",
		},
	)
)

func IncEmail(result string) {
	emailsTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveEmailLatency(ms int64) {
	emailLatencyMs.Observe(float64(ms))
}

func IncDispatchDropped() {
	dispatchDropped.Inc()
}
