package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(quotaChecksTotal, quotaKeysSwept) }

var quotaChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quota_checks_total",
		Help: "Quota reservations by scope and result.",
	},
	[]string{"scope", "result"}, // e.g., scope="ip", result="allowed"
)

var quotaKeysSwept = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "quota_keys_swept_total",
	Help: "Expired in-memory quota counters removed by the sweeper.",
})

func IncQuotaCheck(scope, result string) {
	quotaChecksTotal.WithLabelValues(norm(scope), norm(result)).Inc()
}

func AddQuotaKeysSwept(n int) {
	if n > 0 {
		quotaKeysSwept.Add(float64(n))
	}
}
