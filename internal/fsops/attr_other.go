//go:build !linux && !darwin && !freebsd

package fsops

import "io/fs"

func clearImmutable(string, fs.FileInfo) error {
	return nil
}
