package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turbodelete/internal/fsops"
	"turbodelete/internal/repair"
	"turbodelete/internal/scan"
)

// permDeleter removes through the os package but applies the POSIX write
// permission rules itself, so tests behave the same for root and non-root
// users: unlinking needs a writable parent, and a recursive remove fails on
// any directory in the subtree that is not writable.
type permDeleter struct{}

func writableDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode().Perm()&0o200 != 0
}

func (permDeleter) Remove(path string) error {
	if !writableDir(filepath.Dir(path)) {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrPermission}
	}
	return os.Remove(path)
}

func (permDeleter) RemoveAll(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if !writableDir(filepath.Dir(path)) {
		return &fs.PathError{Op: "unlinkat", Path: path, Err: fs.ErrPermission}
	}
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !writableDir(p) {
			return &fs.PathError{Op: "unlinkat", Path: p, Err: fs.ErrPermission}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// countingRecorder counts engine metric callbacks
type countingRecorder struct {
	removed, failed, repairs atomic.Int64
}

func (c *countingRecorder) EntryRemoved()   { c.removed.Add(1) }
func (c *countingRecorder) EntryFailed()    { c.failed.Add(1) }
func (c *countingRecorder) RepairRan(error) { c.repairs.Add(1) }

// stuckDeleter refuses every removal and remembers what it was asked to do
type stuckDeleter struct {
	mu    sync.Mutex
	calls []string
}

func (d *stuckDeleter) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *stuckDeleter) Remove(path string) error {
	d.record("rm:" + path)
	return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrPermission}
}

func (d *stuckDeleter) RemoveAll(path string) error {
	d.record("rmall:" + path)
	return &fs.PathError{Op: "unlinkat", Path: path, Err: fs.ErrPermission}
}

// repairRecorder keeps the error of every repair pass
type repairRecorder struct {
	countingRecorder
	mu         sync.Mutex
	repairErrs []error
}

func (r *repairRecorder) RepairRan(err error) {
	r.countingRecorder.RepairRan(err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repairErrs = append(r.repairErrs, err)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
}

// unlockOnCleanup restores write access so t.TempDir can clean up after a
// failed assertion left read-only directories behind
func unlockOnCleanup(t *testing.T, root string) {
	t.Cleanup(func() {
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				_ = os.Chmod(p, 0o755)
			}
			return nil
		})
	})
}

func TestDeleteEmptyDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.Mkdir(root, 0o755))

	progress := NewProgress(nil)
	out := New(Options{Workers: 4}).Delete(root, progress)

	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	assert.NoFileExists(t, root)
	assert.NoDirExists(t, root)
	assert.EqualValues(t, 1, progress.Done())
	assert.EqualValues(t, 1, progress.Total())
	assert.Zero(t, out.Entries)
	assert.False(t, out.Repaired)
}

func TestDeleteFlatDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "flat")
	for _, name := range []string{"a", "b", ".c"} {
		writeFile(t, filepath.Join(root, name))
	}

	var entries []scan.Entry
	e := New(Options{Workers: 4})
	scanFn := e.scan
	e.scan = func(r string) ([]scan.Entry, error) {
		var err error
		entries, err = scanFn(r)
		return entries, err
	}

	progress := NewProgress(nil)
	out := e.Delete(root, progress)

	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	assert.NoDirExists(t, root)
	assert.Equal(t, 3, out.Entries)
	assert.EqualValues(t, 4, progress.Done())
	require.Len(t, entries, 3)
	for _, en := range entries {
		assert.Equal(t, 1, en.Depth)
	}
}

func TestDeleteDeepTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "deep")
	for i := 0; i < 10; i++ {
		dir := root
		for d := 0; d <= i; d++ {
			dir = filepath.Join(dir, "level")
		}
		writeFile(t, filepath.Join(dir, "file"))
		writeFile(t, filepath.Join(root, "wide", string(rune('a'+i)), ".hidden"))
	}

	rec := &countingRecorder{}
	out := New(Options{Workers: 3, Recorder: rec}).Delete(root, nil)

	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	assert.NoDirExists(t, root)
	assert.Positive(t, rec.removed.Load())
	assert.Zero(t, rec.repairs.Load())
}

func TestDeleteReadOnlyTreeRunsRepair(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "locked")
	sub := filepath.Join(root, "sub")
	file := filepath.Join(sub, "file")
	writeFile(t, file)
	require.NoError(t, os.Chmod(file, 0o444))
	require.NoError(t, os.Chmod(sub, 0o555))
	require.NoError(t, os.Chmod(root, 0o555))
	unlockOnCleanup(t, base)

	rec := &countingRecorder{}
	out := New(Options{Workers: 2, Deleter: permDeleter{}, Recorder: rec}).Delete(root, nil)

	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	assert.True(t, out.Repaired)
	assert.NoDirExists(t, root)
	assert.EqualValues(t, 1, rec.repairs.Load())
	assert.Positive(t, rec.failed.Load())
}

func TestDeleteReadOnlyTreeWithOSDeleter(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory write permissions")
	}
	base := t.TempDir()
	root := filepath.Join(base, "locked")
	sub := filepath.Join(root, "sub")
	writeFile(t, filepath.Join(sub, "file"))
	require.NoError(t, os.Chmod(sub, 0o555))
	require.NoError(t, os.Chmod(root, 0o555))
	unlockOnCleanup(t, base)

	out := New(Options{Workers: 2}).Delete(root, nil)

	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	assert.True(t, out.Repaired)
	assert.NoDirExists(t, root)
}

func TestDeleteResidualAfterRepair(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "stuck")
	writeFile(t, filepath.Join(root, "file"))

	// A parent that cannot be written keeps the root around no matter what
	// the repair pass does below it.
	require.NoError(t, os.Chmod(base, 0o555))
	unlockOnCleanup(t, base)

	out := New(Options{Workers: 2, Deleter: permDeleter{}}).Delete(root, nil)

	assert.Equal(t, StatusPartialFailure, out.Status)
	assert.True(t, out.Repaired)
	assert.ErrorIs(t, out.Err, ErrResidual)
	assert.DirExists(t, root)
}

func TestDeleteRetriesAfterFailedRepairWalk(t *testing.T) {
	root := filepath.Join(t.TempDir(), "stuck")
	writeFile(t, filepath.Join(root, "sub", "file"))

	stuck := &stuckDeleter{}
	rec := &repairRecorder{}
	e := New(Options{Workers: 2, Deleter: stuck, Recorder: rec})
	var repaired []string
	e.repair = func(r string) error {
		repaired = append(repaired, r)
		return fmt.Errorf("%w: walk %s: %w", repair.ErrRepair, r, fs.ErrPermission)
	}

	out := e.Delete(root, nil)

	assert.Equal(t, []string{root}, repaired)
	require.NotEmpty(t, stuck.calls)
	assert.Equal(t, "rmall:"+root, stuck.calls[len(stuck.calls)-1], "final retry still runs")

	assert.Equal(t, StatusPartialFailure, out.Status)
	assert.True(t, out.Repaired)
	assert.ErrorIs(t, out.Err, ErrResidual)
	assert.ErrorIs(t, out.Err, ErrRepair)

	require.Len(t, rec.repairErrs, 1)
	assert.ErrorIs(t, rec.repairErrs[0], ErrRepair)
	assert.EqualValues(t, 1, rec.repairs.Load())
}

func TestDeleteMissingPath(t *testing.T) {
	base := t.TempDir()
	missing := filepath.Join(base, "missing")
	fake := &fsops.FakeDeleter{}

	var ticks atomic.Int64
	progress := NewProgress(func(int64, int64) { ticks.Add(1) })

	for i := 0; i < 2; i++ {
		out := New(Options{Deleter: fake}).Delete(missing, progress)
		assert.Equal(t, StatusNotFound, out.Status)
		assert.ErrorIs(t, out.Err, ErrNotFound)
	}

	assert.Empty(t, fake.Recorded())
	assert.Zero(t, ticks.Load())
	assert.Zero(t, progress.Total())
	dirents, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, dirents)
}

func TestDeleteSingleFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ro.txt")
	writeFile(t, file)
	require.NoError(t, os.Chmod(file, 0o444))

	e := New(Options{})
	scans := 0
	e.scan = func(string) ([]scan.Entry, error) {
		scans++
		return nil, nil
	}

	progress := NewProgress(nil)
	out := e.Delete(file, progress)

	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	assert.Equal(t, scan.KindFile, out.Kind)
	assert.NoFileExists(t, file)
	assert.Zero(t, scans)
	assert.EqualValues(t, 1, progress.Done())
}

func TestDeleteSingleFileUsesRemove(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	writeFile(t, file)
	fake := &fsops.FakeDeleter{}

	out := New(Options{Deleter: fake}).Delete(file, nil)

	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, []string{"rm:" + file}, fake.Recorded())
}

func TestDeleteSymlinkRootKeepsTarget(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "target")
	writeFile(t, filepath.Join(target, "keep.txt"))
	link := filepath.Join(base, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	out := New(Options{FollowSymlinks: true}).Delete(link, nil)

	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	assert.Equal(t, scan.KindSymlink, out.Kind)
	_, err := os.Lstat(link)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.FileExists(t, filepath.Join(target, "keep.txt"))
}

func TestDeleteDoesNotEscapeThroughLinks(t *testing.T) {
	base := t.TempDir()
	outside := filepath.Join(base, "outside")
	writeFile(t, filepath.Join(outside, "precious.txt"))
	root := filepath.Join(base, "root")
	writeFile(t, filepath.Join(root, "inner", "file"))
	if err := os.Symlink(outside, filepath.Join(root, "inner", "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	out := New(Options{FollowSymlinks: true, Workers: 4}).Delete(root, nil)

	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	assert.NoDirExists(t, root)
	assert.FileExists(t, filepath.Join(outside, "precious.txt"))
}

func TestDryRunMakesNoDeleterCalls(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	writeFile(t, filepath.Join(root, "a"))
	writeFile(t, filepath.Join(root, "d", "b"))
	fake := &fsops.FakeDeleter{}

	progress := NewProgress(nil)
	out := New(Options{DryRun: true, Deleter: fake}).Delete(root, progress)

	require.Equal(t, StatusSuccess, out.Status)
	assert.True(t, out.DryRun)
	assert.Equal(t, 3, out.Entries)
	assert.EqualValues(t, 4, progress.Total())
	assert.Zero(t, progress.Done())
	assert.Empty(t, fake.Recorded())
	assert.FileExists(t, filepath.Join(root, "d", "b"))
}

func TestDryRunSingleFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	writeFile(t, file)
	fake := &fsops.FakeDeleter{}

	out := New(Options{DryRun: true, Deleter: fake}).Delete(file, nil)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Empty(t, fake.Recorded())
	assert.FileExists(t, file)
}

func TestScanFailureFailsTarget(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	writeFile(t, filepath.Join(root, "a"))
	fake := &fsops.FakeDeleter{}

	e := New(Options{Deleter: fake})
	e.scan = func(string) ([]scan.Entry, error) {
		return nil, scan.ErrScan
	}
	out := e.Delete(root, nil)

	assert.Equal(t, StatusPartialFailure, out.Status)
	assert.ErrorIs(t, out.Err, ErrScan)
	assert.Empty(t, fake.Recorded())
}

func TestProgressCountsEveryEntryOnce(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	for _, p := range []string{"a/1", "a/2", "b/c/3", "b/c/d/4", "5"} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(p)))
	}

	var mu sync.Mutex
	var seen []int64
	progress := NewProgress(func(done, total int64) {
		mu.Lock()
		seen = append(seen, done)
		mu.Unlock()
	})

	out := New(Options{Workers: 4}).Delete(root, progress)
	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)

	// 5 files, 4 directories, plus the root
	total := int64(out.Entries) + 1
	assert.EqualValues(t, 10, total)
	assert.Equal(t, total, progress.Done())
	assert.Equal(t, total, progress.Total())

	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
	for i, v := range seen {
		assert.EqualValues(t, i+1, v)
	}
}

// With a single worker the pool runs tasks one after another in the order
// they were submitted, which exposes the submission order.
func TestBucketsSubmittedDeepestFirst(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	writeFile(t, filepath.Join(root, "x", "y", "z"))
	writeFile(t, filepath.Join(root, "top"))
	fake := &fsops.FakeDeleter{}

	New(Options{Workers: 1, Deleter: fake}).Delete(root, nil)

	calls := fake.Recorded()
	require.GreaterOrEqual(t, len(calls), 5)
	depthOf := func(call string) int {
		path := call[strings.Index(call, ":")+1:]
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		if rel == "." {
			return 0
		}
		return len(strings.Split(rel, string(filepath.Separator)))
	}

	got := make([]int, 5)
	for i := range got {
		got[i] = depthOf(calls[i])
	}
	assert.Equal(t, []int{3, 2, 1, 1, 0}, got)
	assert.Equal(t, "rmall:"+root, calls[4])
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "partial_failure", StatusPartialFailure.String())
	assert.Equal(t, "not_found", StatusNotFound.String())
}

func TestNilProgress(t *testing.T) {
	var p *Progress
	p.inc()
	p.setTotal(3)
	assert.Zero(t, p.Done())
	assert.Zero(t, p.Total())
}
