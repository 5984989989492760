package disk

import (
	"io/fs"
	"path/filepath"
)

// TreeStats summarizes the regular files below a path
type TreeStats struct {
	Bytes int64
	Files int64
}

// TreeSize adds up the sizes of regular files under path without following
// symlinks. Unreadable parts of the tree are skipped; the result is an
// estimate for reporting, not an exact figure.
func TreeSize(path string) (TreeStats, error) {
	var stats TreeStats
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			return nil // Skip errors
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			stats.Bytes += info.Size()
			stats.Files++
		}
		return nil
	})
	return stats, err
}
