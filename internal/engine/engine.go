// Package engine removes one file-system target as fast as the disk allows.
//
// A directory target is scanned, its entries are grouped by depth, and every
// group is handed to a bounded pool deepest first, followed by the root
// itself. Individual removal failures are expected (a parent may disappear
// under a child that is still being removed) and are not reported. Whatever
// is left after the pool drains gets one permission repair pass and a final
// recursive remove.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"turbodelete/internal/fsops"
	"turbodelete/internal/logging"
	"turbodelete/internal/plan"
	"turbodelete/internal/repair"
	"turbodelete/internal/scan"
)

// Recorder receives removal counts. internal/metrics provides the Prometheus
// implementation.
type Recorder interface {
	EntryRemoved()
	EntryFailed()
	RepairRan(err error)
}

type nopRecorder struct{}

func (nopRecorder) EntryRemoved()   {}
func (nopRecorder) EntryFailed()    {}
func (nopRecorder) RepairRan(error) {}

// Options configures an Engine
type Options struct {
	Workers        int // 0 = one per CPU
	FollowSymlinks bool
	DryRun         bool
	Deleter        fsops.Deleter
	Logger         logging.Logger
	Recorder       Recorder
}

// Engine deletes targets. It holds no per-call state and may be reused for
// any number of sequential or concurrent Delete calls.
type Engine struct {
	workers  int
	dryRun   bool
	deleter  fsops.Deleter
	logger   logging.Logger
	recorder Recorder
	scanner  *scan.Scanner
	repairer *repair.Repairer

	scan   func(root string) ([]scan.Entry, error)
	repair func(root string) error
}

// New creates an Engine. A nil Deleter removes through the os package.
func New(opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Deleter == nil {
		opts.Deleter = fsops.OSDeleter{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	scanner := scan.NewScanner(scan.Options{
		Workers:        opts.Workers,
		FollowSymlinks: opts.FollowSymlinks,
	}, opts.Logger)

	e := &Engine{
		workers:  opts.Workers,
		dryRun:   opts.DryRun,
		deleter:  opts.Deleter,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		scanner:  scanner,
		repairer: repair.NewRepairer(scanner, opts.Logger),
	}
	e.scan = scanner.Scan
	e.repair = e.repairer.Repair
	return e
}

// Delete removes root and everything below it. progress may be nil.
func (e *Engine) Delete(root string, progress *Progress) Outcome {
	start := time.Now()
	out := e.delete(root, progress)
	out.Path = root
	out.DryRun = e.dryRun
	out.Duration = time.Since(start)

	e.logger.Info("Target finished",
		"path", root,
		"status", out.Status.String(),
		"kind", out.Kind.String(),
		"entries", out.Entries,
		"repaired", out.Repaired,
		"dry_run", out.DryRun,
		"duration", out.Duration.Round(time.Millisecond),
	)
	return out
}

func (e *Engine) delete(root string, progress *Progress) Outcome {
	info, err := os.Lstat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Outcome{Status: StatusNotFound, Err: fmt.Errorf("%w: %s", ErrNotFound, root)}
		}
		return Outcome{Status: StatusPartialFailure, Err: err}
	}

	if !info.IsDir() {
		return e.deleteSingle(root, info, progress)
	}

	entries, err := e.scan(root)
	if err != nil {
		return Outcome{Status: StatusPartialFailure, Kind: scan.KindDir, Err: err}
	}
	p := plan.Build(root, entries)
	progress.setTotal(int64(p.Len()) + 1)

	out := Outcome{Status: StatusSuccess, Kind: scan.KindDir, Entries: p.Len()}
	if e.dryRun {
		e.logger.Info("Dry run: would delete",
			"path", root,
			"entries", p.Len(),
			"max_depth", p.MaxDepth(),
		)
		return out
	}

	e.run(p, progress)

	if !fsops.Exists(root) {
		return out
	}

	e.logger.Warn("Target survived first pass, repairing permissions", "path", root)
	out.Repaired = true
	repairErr := e.repair(root)
	e.recorder.RepairRan(repairErr)
	if err := e.deleter.RemoveAll(root); err != nil {
		out.Status = StatusPartialFailure
		out.Err = errors.Join(fmt.Errorf("%w: %s: %w", ErrResidual, root, err), repairErr)
	}
	return out
}

// deleteSingle removes a file or a symlink root. A symlink is unlinked, its
// target is never touched.
func (e *Engine) deleteSingle(root string, info fs.FileInfo, progress *Progress) Outcome {
	kind := scan.KindFile
	if info.Mode()&fs.ModeSymlink != 0 {
		kind = scan.KindSymlink
	}
	progress.setTotal(1)

	out := Outcome{Status: StatusSuccess, Kind: kind}
	if e.dryRun {
		e.logger.Info("Dry run: would delete", "path", root, "kind", kind.String())
		return out
	}

	if kind == scan.KindFile {
		if err := fsops.MakeWritable(root); err != nil {
			e.logger.Debug("Could not clear read-only state", "path", root, "error", err)
		}
	}
	err := e.deleter.Remove(root)
	progress.inc()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.recorder.EntryFailed()
		out.Status = StatusPartialFailure
		out.Err = err
		return out
	}
	e.recorder.EntryRemoved()
	return out
}

// run submits one task per bucket, deepest first, then the root. Tasks may
// overlap; every single removal holds a slot of one shared semaphore.
func (e *Engine) run(p *plan.Plan, progress *Progress) {
	var g errgroup.Group
	g.SetLimit(e.workers)
	sem := semaphore.NewWeighted(int64(e.workers))

	for _, b := range p.Buckets {
		paths := slices.Clone(b.Paths)
		depth := b.Depth
		g.Go(func() error {
			e.logger.Debug("Bucket started", "depth", depth, "entries", len(paths))
			e.removeAll(paths, sem, progress)
			return nil
		})
	}
	g.Go(func() error {
		e.removeAll([]string{p.Root}, sem, progress)
		return nil
	})

	// Tasks never return errors; removal failures are settled by the
	// existence check and repair pass that follow.
	_ = g.Wait()
}

func (e *Engine) removeAll(paths []string, sem *semaphore.Weighted, progress *Progress) {
	var wg sync.WaitGroup
	for _, path := range paths {
		path := path
		// Acquire only fails on a cancelled context
		_ = sem.Acquire(context.Background(), 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			e.removeOne(path)
			progress.inc()
		}()
	}
	wg.Wait()
}

// removeOne discards its error: a path already taken out by a concurrent
// RemoveAll of an ancestor is the normal case, and anything that really
// stuck is caught by the residual check on the root.
func (e *Engine) removeOne(path string) {
	dir, err := fsops.IsDir(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.recorder.EntryFailed()
			e.logger.Debug("Stat failed", "path", path, "error", err)
		}
		return
	}

	if dir {
		err = e.deleter.RemoveAll(path)
	} else {
		err = e.deleter.Remove(path)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.recorder.EntryFailed()
		e.logger.Debug("Remove failed", "path", path, "error", err)
		return
	}
	e.recorder.EntryRemoved()
}
