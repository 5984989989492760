package fsops

import "sync"

// FakeDeleter implements Deleter for testing
// Records all delete calls without performing actual deletions.
// Safe for use from the engine's concurrent removal tasks.
type FakeDeleter struct {
	mu    sync.Mutex
	Calls []string
}

func (f *FakeDeleter) Remove(path string) error {
	f.record("rm:" + path)
	return nil
}

func (f *FakeDeleter) RemoveAll(path string) error {
	f.record("rmall:" + path)
	return nil
}

// Recorded returns a copy of the calls seen so far
func (f *FakeDeleter) Recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}

func (f *FakeDeleter) record(call string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()
}
