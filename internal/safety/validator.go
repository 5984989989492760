package safety

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrProtectedPath = errors.New("protected path")
)

// Validator refuses delete targets that would take out the system or the
// user's home. Everything else is the operator's call.
type Validator struct {
	ProtectedPaths []string
}

// NewValidator creates a validator with the built-in protected paths plus any extras
func NewValidator(extraProtected []string) *Validator {
	return &Validator{
		ProtectedPaths: defaultProtected(normalizeRoots(extraProtected)),
	}
}

// ValidateDeleteTarget is the single-source-of-truth for delete authorization.
// Protected paths are matched exactly: /usr is refused, /usr/local/src/build is not.
func (v *Validator) ValidateDeleteTarget(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	if IsProtectedPath(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}

	// A symlink named like an ordinary directory can still point at /
	if resolved, err := filepath.EvalSymlinks(p); err == nil && IsProtectedPath(resolved, v.ProtectedPaths) {
		info, lerr := os.Lstat(p)
		// Removing the link itself never touches the target
		if lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		return ErrProtectedPath
	}

	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// IsWithinRoot checks if path is root or lies below it
func IsWithinRoot(path, root string) bool {
	return hasPathPrefix(path, root)
}

// ResolveWithin resolves symlinks in target and reports whether the result
// stays inside realRoot. realRoot must already be symlink-free.
func ResolveWithin(target, realRoot string) (string, bool, error) {
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false, err
	}
	resolvedClean := filepath.Clean(resolvedAbs)
	return resolvedClean, IsWithinRoot(resolvedClean, realRoot), nil
}

// IsProtectedPath checks if path is exactly one of the protected paths
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	// Hard block: filesystem root
	if p == string(os.PathSeparator) || p == filepath.VolumeName(p)+string(os.PathSeparator) {
		return true
	}

	for _, prot := range protected {
		if p == filepath.Clean(prot) {
			return true
		}
	}
	return false
}

// hasPathPrefix checks if path has the given prefix
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// normalizeRoots converts slice of roots to absolute, cleaned paths
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/bin",
		"/boot",
		"/dev",
		"/etc",
		"/home",
		"/lib",
		"/lib64",
		"/opt",
		"/proc",
		"/root",
		"/sbin",
		"/sys",
		"/usr",
		"/var",
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		base = append(base, filepath.Clean(home))
	}
	return append(base, extra...)
}
