// Package repair makes a tree removable again after a first deletion pass
// left residue behind: read-only files, locked directories, and on Linux or
// BSD the immutable and append-only flags.
package repair

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"turbodelete/internal/fsops"
	"turbodelete/internal/logging"
	"turbodelete/internal/scan"
)

// ErrRepair wraps a walk failure during repair
var ErrRepair = errors.New("permission repair failed")

// Repairer walks a tree and clears whatever keeps its entries from being unlinked
type Repairer struct {
	scanner  *scan.Scanner
	logger   logging.Logger
	writable func(path string) error
}

// NewRepairer creates a Repairer that walks with scanner
func NewRepairer(scanner *scan.Scanner, logger logging.Logger) *Repairer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Repairer{
		scanner:  scanner,
		logger:   logger,
		writable: fsops.MakeWritable,
	}
}

// Repair makes root and everything below it writable. Each directory is
// fixed before it is listed, so a locked directory does not stop the walk.
// A walk failure returns an error wrapping ErrRepair; attribute failures on
// single entries are joined into the result.
func (r *Repairer) Repair(root string) error {
	start := time.Now()

	var (
		mu       sync.Mutex
		errs     []error
		repaired int
	)
	walkErr := r.scanner.Walk(root, func(e scan.Entry) error {
		// Chmod on a link would land on its target
		if e.Kind == scan.KindSymlink {
			return nil
		}
		err := r.writable(e.Path)
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			repaired++
		case os.IsNotExist(err):
		default:
			r.logger.Debug("Could not make writable", "path", e.Path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Path, err))
		}
		return nil
	})

	r.logger.Info("Permission repair finished",
		"path", root,
		"repaired", repaired,
		"failures", len(errs),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if walkErr != nil {
		return errors.Join(fmt.Errorf("%w: %w", ErrRepair, walkErr), errors.Join(errs...))
	}
	return errors.Join(errs...)
}
