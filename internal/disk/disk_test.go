package disk

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestGetUsage(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "freebsd" {
		t.Skip("statfs not available")
	}
	dir := t.TempDir()

	usage, err := GetUsage(dir)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if usage.TotalBytes <= 0 {
		t.Errorf("TotalBytes = %d, expected > 0", usage.TotalBytes)
	}
	if p := usage.UsedPercent() + usage.FreePercent(); p < 99.99 || p > 100.01 {
		t.Errorf("Used + Free = %v, expected 100", p)
	}

	// A removed target is measured through its parent
	gone, err := GetUsage(filepath.Join(dir, "missing", "deeper"))
	if err != nil {
		t.Fatalf("GetUsage(missing) failed: %v", err)
	}
	if gone.TotalBytes != usage.TotalBytes {
		t.Errorf("TotalBytes differ: %d vs %d", gone.TotalBytes, usage.TotalBytes)
	}
}

func TestReclaimed(t *testing.T) {
	before := Usage{FreeBytes: 100, TotalBytes: 1000}
	after := Usage{FreeBytes: 350, TotalBytes: 1000}
	if got := Reclaimed(before, after); got != 250 {
		t.Errorf("Reclaimed = %d, expected 250", got)
	}
}

func TestUsageZeroCapacity(t *testing.T) {
	var u Usage
	if u.UsedPercent() != 0 || u.FreePercent() != 100 {
		t.Errorf("zero Usage = %v used, %v free", u.UsedPercent(), u.FreePercent())
	}
}

func TestTreeSize(t *testing.T) {
	dir := t.TempDir()
	files := map[string]int{
		"a":          10,
		"sub/b":      20,
		"sub/.c":     5,
		"sub/deep/d": 1,
	}
	for name, size := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Symlink(filepath.Join(dir, "a"), filepath.Join(dir, "link")); err != nil {
		t.Logf("symlinks unsupported: %v", err)
	}

	stats, err := TreeSize(dir)
	if err != nil {
		t.Fatalf("TreeSize failed: %v", err)
	}
	if stats.Bytes != 36 || stats.Files != 4 {
		t.Errorf("TreeSize = %+v, expected 36 bytes in 4 files", stats)
	}

	if _, err := TreeSize(filepath.Join(dir, "missing")); err == nil {
		t.Error("TreeSize(missing) should fail")
	}
}
