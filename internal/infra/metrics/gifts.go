package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		giftsCreatedTotal,
		giftsAmountTotal,
		giftClaimsTotal,
		guardRejectionsTotal,
	)
}

var (
	giftsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gifts_created_total",
			Help: "Gifts persisted successfully.",
		},
	)

	giftsAmountTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gifts_amount_cents_total",
			Help: "Sum of gift amounts persisted, in minor units.",
		},
	)

	giftClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_claims_total",
			Help: "Claim attempts by result (claimed/not_found/already_claimed/cooldown/error).",
		},
		[]string{"result"},
	)

	guardRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gift_guard_rejections_total",
			Help: "Create requests rejected before persistence, by reason.",
		},
		[]string{"reason"},
	)
)

func IncGiftCreated(amount int64) {
	giftsCreatedTotal.Inc()
	giftsAmountTotal.Add(float64(amount))
}

func IncClaim(result string) {
	giftClaimsTotal.WithLabelValues(norm(result)).Inc()
}

func IncGuardRejection(reason string) {
	guardRejectionsTotal.WithLabelValues(norm(reason)).Inc()
}
