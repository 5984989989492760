package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"turbodelete/internal/disk"
)

// Filesystem metrics for the filesystems holding deleted targets
var (
	// FreeSpacePercent tracks free space percentage after the last target on a path
	FreeSpacePercent *prometheus.GaugeVec

	// PathFreeBytes tracks free space on the filesystem containing the path
	PathFreeBytes *prometheus.GaugeVec

	// PathTotalBytes tracks total capacity of the filesystem containing the path
	PathTotalBytes *prometheus.GaugeVec
)

func initDiskMetrics() {
	FreeSpacePercent = NewSizeGaugeVec(
		"turbodelete_free_space_percent",
		"Free space percentage of the filesystem holding a deleted target.",
		[]string{"path"},
	)

	PathFreeBytes = NewSizeGaugeVec(
		"turbodelete_path_free_bytes",
		"Free space available on the filesystem containing this path.",
		[]string{"path"},
	)

	PathTotalBytes = NewSizeGaugeVec(
		"turbodelete_path_total_bytes",
		"Total capacity of the filesystem containing this path.",
		[]string{"path"},
	)
}

func registerDiskMetrics() {
	mustRegister(FreeSpacePercent, PathFreeBytes, PathTotalBytes)
}

// UpdateDiskMetrics records filesystem usage for path
func UpdateDiskMetrics(path string, usage disk.Usage) {
	FreeSpacePercent.WithLabelValues(path).Set(usage.FreePercent())
	PathFreeBytes.WithLabelValues(path).Set(float64(usage.FreeBytes))
	PathTotalBytes.WithLabelValues(path).Set(float64(usage.TotalBytes))
}
