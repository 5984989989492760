// Package disk reports filesystem capacity and tree sizes, used to measure
// how much space a deletion gave back.
package disk

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrUnsupported is returned where the platform has no statfs
var ErrUnsupported = errors.New("filesystem usage not supported on this platform")

// Usage is a point-in-time capacity reading of one filesystem
type Usage struct {
	FreeBytes  int64 // available to unprivileged users
	TotalBytes int64
}

// UsedPercent returns the percentage of capacity in use
func (u Usage) UsedPercent() float64 {
	if u.TotalBytes <= 0 {
		return 0
	}
	return float64(u.TotalBytes-u.FreeBytes) / float64(u.TotalBytes) * 100.0
}

// FreePercent returns the percentage of capacity still free
func (u Usage) FreePercent() float64 {
	if u.TotalBytes <= 0 {
		return 100.0
	}
	return 100.0 - u.UsedPercent()
}

// GetUsage returns capacity of the filesystem holding path. A path that no
// longer exists is measured through its nearest existing ancestor, so the
// same call works before and after a target is removed.
func GetUsage(path string) (Usage, error) {
	return statfs(existingAncestor(path))
}

// Reclaimed returns the free space gained between two readings
func Reclaimed(before, after Usage) int64 {
	return after.FreeBytes - before.FreeBytes
}

func existingAncestor(path string) string {
	p := filepath.Clean(path)
	for {
		if _, err := os.Lstat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}
