package engine

import (
	"errors"
	"time"

	"turbodelete/internal/repair"
	"turbodelete/internal/scan"
)

var (
	// ErrNotFound is returned for a target that does not exist
	ErrNotFound = errors.New("path does not exist")

	// ErrResidual means the target was still present after the repair retry
	ErrResidual = errors.New("target could not be fully removed")

	ErrScan   = scan.ErrScan
	ErrRepair = repair.ErrRepair
)

// Status is the final state of one target
type Status int

const (
	StatusSuccess Status = iota
	StatusPartialFailure
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartialFailure:
		return "partial_failure"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Outcome describes what happened to one target. The engine does not keep it.
type Outcome struct {
	Path     string
	Status   Status
	Err      error
	Kind     scan.Kind
	Entries  int  // descendants found by the scan, root excluded
	Repaired bool // the permission repair pass ran
	Duration time.Duration
	DryRun   bool
}

// OK reports whether the target is gone (or would be, for a dry run)
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}
