//go:build linux || darwin || freebsd

package disk

import "golang.org/x/sys/unix"

func statfs(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, err
	}
	bsize := int64(st.Bsize)
	return Usage{
		FreeBytes:  int64(st.Bavail) * bsize,
		TotalBytes: int64(st.Blocks) * bsize,
	}, nil
}
