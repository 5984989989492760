// Package cleanup runs the deletion engine over the targets of one command
// line, one target at a time, and records what happened to each.
package cleanup

import (
	"context"
	"errors"
	"strings"
	"time"

	"turbodelete/internal/database"
	"turbodelete/internal/disk"
	"turbodelete/internal/engine"
	"turbodelete/internal/fsops"
	"turbodelete/internal/logging"
	"turbodelete/internal/metrics"
	"turbodelete/internal/safety"
	"turbodelete/internal/scan"
)

// TargetDeleter deletes one target. *engine.Engine implements it.
type TargetDeleter interface {
	Delete(root string, progress *engine.Progress) engine.Outcome
}

// History stores one row per target. *database.HistoryDB implements it.
type History interface {
	RecordTarget(rec database.TargetRecord) error
}

// Reporter shows per-target progress to the operator
type Reporter interface {
	// Start is called for a target that exists, right before deletion.
	// The returned counter may be nil.
	Start(path string) *engine.Progress
	// Finish is called once for every target, including refused ones.
	Finish(res Result)
}

// Result is what the coordinator knows about one target
type Result struct {
	Arg            string // as given on the command line
	Outcome        engine.Outcome
	Refused        bool // blocked by the safety validator
	BytesReclaimed int64
	EstimatedBytes int64 // dry run only: size of the regular files found
}

// OK reports whether the target counts as a success
func (r Result) OK() bool {
	return !r.Refused && r.Outcome.OK()
}

// Status returns the history/metrics status label
func (r Result) Status() string {
	if r.Refused {
		return database.StatusRefused
	}
	return r.Outcome.Status.String()
}

// Summary totals one run
type Summary struct {
	Successes   int
	Errors      int
	Skipped     int // targets not started because the context was cancelled
	Results     []Result
	Elapsed     time.Duration
	Interrupted bool
}

// Options configures a Cleaner
type Options struct {
	Deleter   TargetDeleter
	Validator *safety.Validator
	History   History // optional
	Reporter  Reporter
	Logger    logging.Logger
	DryRun    bool
}

// Cleaner coordinates the targets of one run
type Cleaner struct {
	deleter   TargetDeleter
	validator *safety.Validator
	history   History
	reporter  Reporter
	logger    logging.Logger
	dryRun    bool
}

// NewCleaner creates a Cleaner. Missing optional collaborators are replaced
// by no-ops; Deleter is required.
func NewCleaner(opts Options) *Cleaner {
	if opts.Validator == nil {
		opts.Validator = safety.NewValidator(nil)
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Cleaner{
		deleter:   opts.Deleter,
		validator: opts.Validator,
		history:   opts.History,
		reporter:  opts.Reporter,
		logger:    opts.Logger,
		dryRun:    opts.DryRun,
	}
}

type nopReporter struct{}

func (nopReporter) Start(string) *engine.Progress { return nil }
func (nopReporter) Finish(Result)                 {}

// StripQuotes removes one pair of surrounding double quotes, left behind by
// shells that pass quoted arguments through verbatim
func StripQuotes(arg string) string {
	if len(arg) >= 2 && strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
		return arg[1 : len(arg)-1]
	}
	return arg
}

// Run deletes targets in order. Cancellation is only observed between
// targets; a target that has started always runs to completion.
func (c *Cleaner) Run(ctx context.Context, targets []string) Summary {
	start := time.Now()
	c.logger.Info("Starting run", "targets", len(targets), "dry_run", c.dryRun)

	var sum Summary
	for i, arg := range targets {
		if err := ctx.Err(); err != nil {
			sum.Interrupted = true
			sum.Skipped = len(targets) - i
			c.logger.Warn("Run interrupted", "remaining", sum.Skipped, "error", err)
			break
		}

		res := c.processTarget(arg)
		sum.Results = append(sum.Results, res)
		if res.OK() {
			sum.Successes++
		} else {
			sum.Errors++
		}
	}

	sum.Elapsed = time.Since(start)
	metrics.RecordRun()
	c.logger.Info("Run complete",
		"success", sum.Successes,
		"errors", sum.Errors,
		"skipped", sum.Skipped,
		"duration", sum.Elapsed.Round(time.Millisecond),
	)
	return sum
}

func (c *Cleaner) processTarget(arg string) Result {
	raw := StripQuotes(arg)
	res := Result{Arg: raw}

	path, err := safety.NormalizePath(raw)
	if err == nil {
		err = c.validator.ValidateDeleteTarget(path)
	}
	if err != nil {
		res.Refused = true
		res.Outcome = engine.Outcome{Path: raw, Status: engine.StatusPartialFailure, Err: err}
		c.logger.Error("Target refused", "path", raw, "error", err)
		c.finish(res)
		return res
	}

	var before disk.Usage
	var haveBefore bool
	exists := fsops.Exists(path)
	if exists {
		if c.dryRun {
			if stats, err := disk.TreeSize(path); err == nil {
				res.EstimatedBytes = stats.Bytes
			}
		} else if u, err := disk.GetUsage(path); err == nil {
			before, haveBefore = u, true
		}
	}

	var progress *engine.Progress
	if exists {
		progress = c.reporter.Start(path)
	}
	res.Outcome = c.deleter.Delete(path, progress)

	if haveBefore && res.Outcome.Status != engine.StatusNotFound {
		if after, err := disk.GetUsage(path); err == nil {
			res.BytesReclaimed = max(disk.Reclaimed(before, after), 0)
			metrics.UpdateDiskMetrics(path, after)
		}
	}

	if res.Outcome.Err != nil {
		c.logger.Error("Target failed", "path", path, "status", res.Outcome.Status.String(), "error", res.Outcome.Err)
	}
	c.finish(res)
	return res
}

// finish records metrics and history, then hands the result to the reporter.
// History failures are logged and never fail the target.
func (c *Cleaner) finish(res Result) {
	metrics.RecordTarget(res.Status(), res.Outcome.Duration)
	metrics.RecordReclaimed(res.Outcome.Path, res.BytesReclaimed)

	if c.history != nil {
		rec := database.TargetRecord{
			Timestamp:      time.Now(),
			Path:           res.Outcome.Path,
			ObjectType:     objectType(res),
			Status:         res.Status(),
			Entries:        int64(res.Outcome.Entries),
			Repaired:       res.Outcome.Repaired,
			DryRun:         c.dryRun,
			DurationMs:     res.Outcome.Duration.Milliseconds(),
			BytesReclaimed: res.BytesReclaimed,
		}
		if res.Outcome.Err != nil {
			rec.ErrorMessage = res.Outcome.Err.Error()
		}
		if err := c.history.RecordTarget(rec); err != nil {
			metrics.ErrorsTotal.Inc()
			c.logger.Error("Failed to record to database", "path", rec.Path, "error", err)
		}
	}

	c.reporter.Finish(res)
}

func objectType(res Result) string {
	switch {
	case res.Refused, errors.Is(res.Outcome.Err, engine.ErrNotFound):
		return "unknown"
	case res.Outcome.Kind == scan.KindSymlink:
		return "symlink"
	case res.Outcome.Kind == scan.KindDir:
		return "directory"
	default:
		return "file"
	}
}
