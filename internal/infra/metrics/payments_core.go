package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentIntentsTotal,
		paymentIntentAmountTotal,
	)
}

var (
	paymentIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Payment intents by provider and status (created/failed).",
		},
		[]string{"provider", "status"},
	)

	paymentIntentAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intent_amount_total",
			Help: "The total minor-unit value of created payment intents, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncPaymentIntent(provider, status string) {
	paymentIntentsTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func AddPaymentIntentAmount(currency string, amount int64) {
	paymentIntentAmountTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
