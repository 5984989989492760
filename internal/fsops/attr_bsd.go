//go:build darwin || freebsd

package fsops

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

// clearImmutable resets the file flags (uchg, uappnd and friends) so that
// the entry can be unlinked. Reset to zero like chflags 0.
func clearImmutable(path string, info fs.FileInfo) error {
	if !attrTarget(info) {
		return nil
	}
	err := unix.Chflags(path, 0)
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EOPNOTSUPP) {
		return nil
	}
	return err
}
