package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"turbodelete/internal/disk"
)

// TestMetricsInit verifies that Init() is idempotent and registers metrics
func TestMetricsInit(t *testing.T) {
	// Call Init multiple times - should be idempotent via sync.Once
	Init()
	Init()
	Init()

	if TargetDuration == nil {
		t.Error("TargetDuration should be initialized")
	}
	if EntriesRemovedTotal == nil {
		t.Error("EntriesRemovedTotal should be initialized")
	}
	if FreeSpacePercent == nil {
		t.Error("FreeSpacePercent should be initialized")
	}

	mfs, err := Registry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	expectedMetrics := []string{
		"turbodelete_target_duration_seconds",
		"turbodelete_targets_total",
		"turbodelete_entries_removed_total",
		"turbodelete_entry_errors_total",
		"turbodelete_bytes_reclaimed_total",
		"turbodelete_last_run_timestamp",
		"turbodelete_errors_total",
	}

	foundMetrics := make(map[string]bool)
	for _, mf := range mfs {
		foundMetrics[mf.GetName()] = true
	}

	for _, expected := range expectedMetrics {
		if !foundMetrics[expected] {
			t.Errorf("Expected metric %s not found in registry", expected)
		}
	}
}

// TestEngineRecorder verifies the removal pool callbacks land in the counters
func TestEngineRecorder(t *testing.T) {
	Init()

	removed := testutil.ToFloat64(EntriesRemovedTotal)
	failed := testutil.ToFloat64(EntryErrorsTotal)
	repairsFailed := testutil.ToFloat64(RepairPassesTotal.WithLabelValues("failed"))

	var r EngineRecorder
	r.EntryRemoved()
	r.EntryRemoved()
	r.EntryFailed()
	r.RepairRan(errors.New("chmod failed"))

	if got := testutil.ToFloat64(EntriesRemovedTotal) - removed; got != 2 {
		t.Errorf("EntriesRemovedTotal delta = %v, expected 2", got)
	}
	if got := testutil.ToFloat64(EntryErrorsTotal) - failed; got != 1 {
		t.Errorf("EntryErrorsTotal delta = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(RepairPassesTotal.WithLabelValues("failed")) - repairsFailed; got != 1 {
		t.Errorf("RepairPassesTotal{failed} delta = %v, expected 1", got)
	}
}

// TestRecordHelpers tests the per-target helper functions
func TestRecordHelpers(t *testing.T) {
	Init()

	t.Run("RecordTarget", func(t *testing.T) {
		before := testutil.ToFloat64(TargetsTotal.WithLabelValues("success"))
		RecordTarget("success", 1500*time.Millisecond)
		if got := testutil.ToFloat64(TargetsTotal.WithLabelValues("success")) - before; got != 1 {
			t.Errorf("TargetsTotal{success} delta = %v, expected 1", got)
		}
	})

	t.Run("RecordReclaimed", func(t *testing.T) {
		before := testutil.ToFloat64(BytesReclaimedTotal)
		RecordReclaimed("/tmp/build", 4096)
		RecordReclaimed("/tmp/build", -100)
		if got := testutil.ToFloat64(BytesReclaimedTotal) - before; got != 4096 {
			t.Errorf("BytesReclaimedTotal delta = %v, expected 4096", got)
		}
	})

	t.Run("RecordRun", func(t *testing.T) {
		RecordRun()
		if testutil.ToFloat64(LastRunTimestamp) <= 0 {
			t.Error("LastRunTimestamp should be set")
		}
	})

	t.Run("UpdateDiskMetrics", func(t *testing.T) {
		UpdateDiskMetrics("/tmp/build", disk.Usage{FreeBytes: 250, TotalBytes: 1000})
		if got := testutil.ToFloat64(FreeSpacePercent.WithLabelValues("/tmp/build")); got != 25 {
			t.Errorf("FreeSpacePercent = %v, expected 25", got)
		}
	})
}

// TestWriteTextfile verifies the node_exporter textfile output
func TestWriteTextfile(t *testing.T) {
	Init()
	path := filepath.Join(t.TempDir(), "turbodelete.prom")

	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	if !strings.Contains(string(data), "turbodelete_targets_total") {
		t.Errorf("textfile missing turbodelete_targets_total:\n%s", data)
	}

	if err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")); err == nil {
		t.Error("WriteTextfile into a missing directory should fail")
	}
}

// TestPush verifies metrics are sent to the Pushgateway job URL
func TestPush(t *testing.T) {
	Init()

	var hits atomic.Int32
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotPath.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Push(srv.URL, "turbodelete"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Pushgateway hits = %d, expected 1", hits.Load())
	}
	if p, _ := gotPath.Load().(string); p != "/metrics/job/turbodelete" {
		t.Errorf("push path = %q", p)
	}
}

// TestStandardBuckets verifies the duration buckets are sorted
func TestStandardBuckets(t *testing.T) {
	for i := 1; i < len(DurationBuckets); i++ {
		if DurationBuckets[i] <= DurationBuckets[i-1] {
			t.Errorf("DurationBuckets not increasing at %d: %v", i, DurationBuckets)
		}
	}
}
