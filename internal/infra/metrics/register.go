package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Mutex

// register adds collectors to the default registry, tolerating duplicate
// registration across tests.
func register(cs ...prometheus.Collector) {
	registerOnce.Lock()
	defer registerOnce.Unlock()
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
		}
	}
}

// norm lowercases a label value and collapses spaces so label cardinality
// stays predictable.
func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
