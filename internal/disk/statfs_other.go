//go:build !linux && !darwin && !freebsd

package disk

func statfs(string) (Usage, error) {
	return Usage{}, ErrUnsupported
}
