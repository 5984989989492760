package fsops

// Deleter abstracts filesystem delete operations
// Enables mocking in tests to prove dry-run and single-file paths never walk or delete more than asked
type Deleter interface {
	Remove(path string) error
	RemoveAll(path string) error
}
