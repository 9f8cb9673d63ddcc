package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(triggersScheduledTotal, triggerCleanupFailuresTotal)
}

var (
	triggersScheduledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_triggers_scheduled_total",
		Help: "One-shot pre-billing triggers scheduled.",
	})
	triggerCleanupFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_trigger_cleanup_failures_total",
		Help: "Failures while deleting a consumed pre-billing trigger.",
	})
)

func IncTriggerScheduled() {
	triggersScheduledTotal.Inc()
}

func IncTriggerCleanupFailure() {
	triggerCleanupFailuresTotal.Inc()
}
