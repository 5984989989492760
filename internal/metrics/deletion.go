package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Deletion metrics
var (
	// TargetDuration tracks how long one top-level target takes
	TargetDuration prometheus.Histogram

	// TargetsTotal counts targets by final status
	TargetsTotal *prometheus.CounterVec

	// EntriesRemovedTotal counts entries the removal pool took out
	EntriesRemovedTotal prometheus.Counter

	// EntryErrorsTotal counts removal errors discarded by the pool
	EntryErrorsTotal prometheus.Counter

	// RepairPassesTotal counts permission repair passes by result
	RepairPassesTotal *prometheus.CounterVec

	// BytesReclaimedTotal tracks free space gained across all targets
	BytesReclaimedTotal prometheus.Counter

	// PathBytesReclaimedTotal tracks free space gained per target
	PathBytesReclaimedTotal *prometheus.CounterVec

	// LastRunTimestamp records Unix timestamp of the last run
	LastRunTimestamp prometheus.Gauge

	// ErrorsTotal counts runtime errors outside the removal pool
	// (history writes, metric export)
	ErrorsTotal prometheus.Counter
)

func initDeletionMetrics() {
	TargetDuration = NewDurationHistogram(
		"turbodelete_target_duration_seconds",
		"Duration of one target deletion in seconds.",
	)

	TargetsTotal = NewCounterVec(
		"turbodelete_targets_total",
		"Total number of targets processed, by final status.",
		[]string{"status"},
	)

	EntriesRemovedTotal = NewCounter(
		"turbodelete_entries_removed_total",
		"Total number of entries removed by the parallel removal pool.",
	)

	EntryErrorsTotal = NewCounter(
		"turbodelete_entry_errors_total",
		"Total number of individual removal errors discarded by the pool.",
	)

	RepairPassesTotal = NewCounterVec(
		"turbodelete_repair_passes_total",
		"Total number of permission repair passes, by result.",
		[]string{"result"},
	)

	BytesReclaimedTotal = NewBytesCounter(
		"turbodelete_bytes_reclaimed_total",
		"Total free space gained by deletions, in bytes.",
	)

	PathBytesReclaimedTotal = NewCounterVec(
		"turbodelete_path_bytes_reclaimed_total",
		"Free space gained per target, in bytes.",
		[]string{"path"},
	)

	LastRunTimestamp = NewSizeGauge(
		"turbodelete_last_run_timestamp",
		"Timestamp of the last run (Unix epoch seconds).",
	)

	ErrorsTotal = NewCounter(
		"turbodelete_errors_total",
		"Total number of runtime errors outside the removal pool.",
	)
}

func registerDeletionMetrics() {
	mustRegister(
		TargetDuration,
		TargetsTotal,
		EntriesRemovedTotal,
		EntryErrorsTotal,
		RepairPassesTotal,
		BytesReclaimedTotal,
		PathBytesReclaimedTotal,
		LastRunTimestamp,
		ErrorsTotal,
	)
}

// RecordTarget records the status and duration of one finished target
func RecordTarget(status string, d time.Duration) {
	TargetsTotal.WithLabelValues(status).Inc()
	TargetDuration.Observe(d.Seconds())
}

// RecordRun updates the last run timestamp to current time
func RecordRun() {
	LastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordReclaimed records bytes freed by deleting path. Negative values
// (other writers filled the disk meanwhile) are ignored.
func RecordReclaimed(path string, bytes int64) {
	if bytes <= 0 {
		return
	}
	BytesReclaimedTotal.Add(float64(bytes))
	PathBytesReclaimedTotal.WithLabelValues(path).Add(float64(bytes))
}

// EngineRecorder feeds the removal pool's counters. Init must have been called.
type EngineRecorder struct{}

func (EngineRecorder) EntryRemoved() {
	EntriesRemovedTotal.Inc()
}

func (EngineRecorder) EntryFailed() {
	EntryErrorsTotal.Inc()
}

func (EngineRecorder) RepairRan(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	RepairPassesTotal.WithLabelValues(result).Inc()
}
