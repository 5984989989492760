package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	// registry holds only turbodelete collectors, so exported files and
	// pushes carry no Go runtime noise
	registry = prometheus.NewRegistry()
)

// Init creates and registers all collectors.
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initDeletionMetrics()
		initDiskMetrics()

		registerDeletionMetrics()
		registerDiskMetrics()

		// Present in every export, even before the first target
		LastRunTimestamp.Set(0)
		for _, status := range []string{"success", "partial_failure", "not_found", "refused"} {
			TargetsTotal.WithLabelValues(status)
		}
	})
}

// Registry returns the registry all collectors are registered with
func Registry() *prometheus.Registry {
	return registry
}

func mustRegister(cs ...prometheus.Collector) {
	registry.MustRegister(cs...)
}
