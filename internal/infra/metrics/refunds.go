package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		refundChecksTotal,
		refundsDisbursedDollars,
		refundedMonthToDate,
		refundCheckDuration,
	)
}

var (
	refundChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refund_checks_total",
			Help: "Pre-billing refund checks by outcome (refunded/not_eligible/duplicate/resolution_failed).",
		},
		[]string{"outcome"},
	)

	refundsDisbursedDollars = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refunds_disbursed_dollars_total",
			Help: "Total whole-dollar value of partial refunds issued.",
		},
	)

	refundedMonthToDate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "refunds_month_to_date_dollars",
			Help: "Whole-dollar refunds disbursed since the start of the current month.",
		},
	)

	refundCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refund_check_duration_seconds",
			Help:    "End-to-end pre-billing check duration.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
)

func IncRefundCheck(outcome string) {
	refundChecksTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddRefundDisbursed(dollars float64) {
	refundsDisbursedDollars.Add(dollars)
}

func SetRefundedMonthToDate(dollars float64) {
	refundedMonthToDate.Set(dollars)
}

func ObserveRefundCheckDuration(d time.Duration) {
	refundCheckDuration.Observe(d.Seconds())
}
