//go:build linux

package fsops

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

// Inode flags from linux/fs.h
const (
	fsImmutableFl = 0x00000010
	fsAppendFl    = 0x00000020
)

// clearImmutable drops the immutable and append-only inode flags (chattr -ia).
// Changing them needs CAP_LINUX_IMMUTABLE; lacking it, or running on a
// filesystem without inode flags, is not an error.
func clearImmutable(path string, info fs.FileInfo) error {
	if !attrTarget(info) {
		return nil
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil
	}
	defer unix.Close(fd)

	flags, err := unix.IoctlGetInt(fd, unix.FS_IOC_GETFLAGS)
	if err != nil || flags&(fsImmutableFl|fsAppendFl) == 0 {
		return nil
	}
	err = unix.IoctlSetPointerInt(fd, unix.FS_IOC_SETFLAGS, flags&^(fsImmutableFl|fsAppendFl))
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOTTY) || errors.Is(err, unix.EOPNOTSUPP) {
		return nil
	}
	return err
}
