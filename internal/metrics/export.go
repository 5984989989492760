package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// WriteTextfile writes all collectors in text exposition format to path,
// for the node_exporter textfile collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		ErrorsTotal.Inc()
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push sends all collectors to a Prometheus Pushgateway under job
func Push(url, job string) error {
	if err := push.New(url, job).Gatherer(registry).Push(); err != nil {
		ErrorsTotal.Inc()
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
