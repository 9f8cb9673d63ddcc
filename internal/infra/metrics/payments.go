package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(ledgerRecordsTotal)
}

var ledgerRecordsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_ledger_records_total",
		Help: "Ledger rows appended, by type (payment/refund) and status.",
	},
	[]string{"type", "status"},
)

func IncLedgerRecord(recordType, status string) {
	ledgerRecordsTotal.WithLabelValues(norm(recordType), norm(status)).Inc()
}
