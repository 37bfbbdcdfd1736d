package marketplace

import "github.com/prometheus/client_golang/prometheus"

var (
	proofsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_proofs_total",
		Help: "Proof adjudications by outcome and reason.",
	}, []string{"outcome", "reason"})
	paymentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_payments_total",
		Help: "Resolved payment reviews by decision.",
	}, []string{"decision"})
	payoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_payouts_total",
		Help: "Resolved payout reviews by decision.",
	}, []string{"decision"})
	ordersCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_orders_completed_total",
		Help: "Orders whose counters all reached zero.",
	})
	creditedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_earnings_credited_total",
		Help: "Sum of engager earnings credited, in minor units.",
	})
	persistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_persist_failures_total",
		Help: "Snapshot writes that failed and rolled back an operation.",
	})
)

func init() {
	prometheus.MustRegister(proofsTotal, paymentsTotal, payoutsTotal, ordersCompleted, creditedTotal, persistFailures)
}
