package fsops

import (
	"io/fs"
	"os"
)

// MakeWritable clears the read-only state of path.
// Files get the owner write bit. Directories additionally get owner read and
// execute so their contents can be listed and unlinked afterwards.
// On Windows os.Chmod maps the owner write bit onto the read-only attribute.
func MakeWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	// An immutable inode refuses chmod, so the flags go first
	if err := clearImmutable(path, info); err != nil {
		return err
	}
	mode := info.Mode().Perm()
	want := mode | 0o200
	if info.IsDir() {
		want |= 0o700
	}
	if want != mode {
		return os.Chmod(path, want)
	}
	return nil
}

// IsDir reports whether path is a directory without following a final symlink
func IsDir(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Exists reports whether anything is present at path (dangling symlinks count)
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func attrTarget(info fs.FileInfo) bool {
	return info.Mode().IsRegular() || info.IsDir()
}
