package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"turbodelete/internal/logging"
	"turbodelete/internal/safety"
)

// Kind classifies a scanned entry
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink // a link that was not followed: dangling, escaping the root, or looping
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "file"
	}
}

// Entry is one node found below the scan root. Depth 1 is a direct child of
// the root; the root itself is reported with depth 0 by Walk only.
type Entry struct {
	Path  string
	Depth int
	Kind  Kind
}

// ErrScan wraps every traversal failure
var ErrScan = errors.New("scan failed")

// VisitFunc is called for every entry, concurrently, before a directory is
// expanded. Returning an error stops the walk.
type VisitFunc func(Entry) error

// Options controls traversal
type Options struct {
	Workers        int  // concurrent directory expansions, 0 = one per CPU
	FollowSymlinks bool // descend into links whose target stays inside the root
}

// Scanner walks trees with concurrent directory expansion
type Scanner struct {
	workers int
	follow  bool
	logger  logging.Logger
}

// NewScanner creates a new Scanner with the given options and logger
func NewScanner(opts Options, logger logging.Logger) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scanner{
		workers: opts.Workers,
		follow:  opts.FollowSymlinks,
		logger:  logger,
	}
}

// Scan materializes every descendant of root. Any unreadable directory
// aborts the scan; no partial result is returned.
func (s *Scanner) Scan(root string) ([]Entry, error) {
	start := time.Now()
	s.logger.Info("Starting scan", "path", root, "workers", s.workers, "follow_symlinks", s.follow)

	var mu sync.Mutex
	entries := make([]Entry, 0, 64)
	err := s.Walk(root, func(e Entry) error {
		if e.Depth == 0 {
			return nil
		}
		mu.Lock()
		entries = append(entries, e)
		mu.Unlock()
		return nil
	})
	if err != nil {
		s.logger.Warn("Scan aborted", "path", root, "error", err)
		return nil, err
	}

	s.logger.Info("Scan complete",
		"path", root,
		"entries", len(entries),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return entries, nil
}

// Walk calls fn for root (depth 0) and every reachable entry below it.
// Hidden entries are included. Directory expansion runs on a bounded
// errgroup; when every slot is busy the expansion runs inline instead.
func (s *Scanner) Walk(root string, fn VisitFunc) error {
	info, err := os.Lstat(root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScan, err)
	}
	kind := kindOf(info)
	if kind == KindSymlink && s.follow {
		if target, err := os.Stat(root); err == nil {
			kind = kindOf(target)
		}
	}

	if err := fn(Entry{Path: root, Depth: 0, Kind: kind}); err != nil {
		return err
	}
	if kind != KindDir {
		return nil
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScan, err)
	}
	realRoot, err = filepath.Abs(realRoot)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScan, err)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(s.workers)

	w := &walker{
		scanner:  s,
		fn:       fn,
		g:        g,
		ctx:      ctx,
		realRoot: realRoot,
	}
	w.visited.Store(realRoot, struct{}{})

	g.Go(func() error {
		return w.expand(root, realRoot, 0)
	})
	return g.Wait()
}

type walker struct {
	scanner  *Scanner
	fn       VisitFunc
	g        *errgroup.Group
	ctx      context.Context
	realRoot string
	visited  sync.Map // real paths of directories already claimed for expansion
}

func (w *walker) expand(dir, realDir string, depth int) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsPermission(err) {
			w.scanner.logger.Warn("Permission denied", "path", dir)
		}
		return fmt.Errorf("%w: %w", ErrScan, err)
	}

	for _, de := range dirents {
		child := filepath.Join(dir, de.Name())
		childReal := filepath.Join(realDir, de.Name())
		entry := Entry{Path: child, Depth: depth + 1, Kind: KindFile}
		descend := false

		switch {
		case de.IsDir():
			entry.Kind = KindDir
			descend = true
			w.visited.Store(childReal, struct{}{})
		case de.Type()&fs.ModeSymlink != 0:
			entry.Kind = KindSymlink
			if w.scanner.follow {
				entry.Kind, childReal, descend = w.followLink(child)
			}
		}

		if err := w.fn(entry); err != nil {
			return err
		}
		if !descend {
			continue
		}

		childDepth := depth + 1
		if !w.g.TryGo(func() error { return w.expand(child, childReal, childDepth) }) {
			if err := w.expand(child, childReal, childDepth); err != nil {
				return err
			}
		}
	}
	return nil
}

// followLink resolves a symlink. Targets outside the root, dangling links and
// directories that were already claimed stay unfollowed leaves.
func (w *walker) followLink(link string) (Kind, string, bool) {
	resolved, inside, err := safety.ResolveWithin(link, w.realRoot)
	if err != nil || !inside {
		if err == nil {
			w.scanner.logger.Debug("Not following symlink outside root", "path", link, "target", resolved)
		}
		return KindSymlink, "", false
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return KindSymlink, "", false
	}
	if !info.IsDir() {
		return KindFile, resolved, false
	}
	if _, loaded := w.visited.LoadOrStore(resolved, struct{}{}); loaded {
		return KindSymlink, "", false
	}
	return KindDir, resolved, true
}

func kindOf(info fs.FileInfo) Kind {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return KindSymlink
	case info.IsDir():
		return KindDir
	default:
		return KindFile
	}
}
