package engine

import "sync/atomic"

// Progress counts processed entries for one Delete call. The root is counted
// alongside its descendants, so a call on an empty directory ends at 1.
// A nil *Progress is valid and counts nothing.
type Progress struct {
	done  atomic.Int64
	total atomic.Int64

	// OnTick, if set, runs after every increment. It is called from removal
	// goroutines and must be safe for concurrent use.
	OnTick func(done, total int64)
}

// NewProgress returns a counter that reports through onTick
func NewProgress(onTick func(done, total int64)) *Progress {
	return &Progress{OnTick: onTick}
}

// Done returns the number of entries processed so far
func (p *Progress) Done() int64 {
	if p == nil {
		return 0
	}
	return p.done.Load()
}

// Total returns the number of entries the current plan will process
func (p *Progress) Total() int64 {
	if p == nil {
		return 0
	}
	return p.total.Load()
}

func (p *Progress) setTotal(n int64) {
	if p == nil {
		return
	}
	p.total.Store(n)
}

func (p *Progress) inc() {
	if p == nil {
		return
	}
	done := p.done.Add(1)
	if p.OnTick != nil {
		p.OnTick(done, p.total.Load())
	}
}
