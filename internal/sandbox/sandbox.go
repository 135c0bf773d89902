package sandbox

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// PathEscapeError reports a path that resolves outside the sandbox root.
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return "path escapes sandbox: " + e.Path
}

// IsPathEscape reports whether err is or wraps a *PathEscapeError.
func IsPathEscape(err error) bool {
	var pe *PathEscapeError
	return errors.As(err, &pe)
}

// Sandbox confines paths to a canonical root directory.
type Sandbox struct {
	root string
}

// New canonicalizes root once so repeated Resolve calls skip that work.
func New(root string) (Sandbox, error) {
	canonical, err := canonicalRoot(root)
	if err != nil {
		return Sandbox{}, err
	}
	return Sandbox{root: canonical}, nil
}

// Root returns the canonical sandbox root.
func (s Sandbox) Root() string {
	return s.root
}

// Resolve maps a caller-supplied path to an absolute path inside the root.
func (s Sandbox) Resolve(relativePath string) (string, error) {
	return resolve(relativePath, s.root)
}

// Sanitize resolves relativePath against sandboxRoot and fails with a
// *PathEscapeError when the result lies outside the root. Symlinks in the
// existing part of the target are followed before the containment check.
// Callers resolving many paths against one root should use New once.
func Sanitize(relativePath, sandboxRoot string) (string, error) {
	sb, err := New(sandboxRoot)
	if err != nil {
		return "", err
	}
	return sb.Resolve(relativePath)
}

func canonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrap(err, "resolving sandbox root")
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrap(err, "canonicalizing sandbox root")
	}
	return resolved, nil
}

func resolve(relativePath, root string) (string, error) {
	target := relativePath
	if filepath.IsAbs(target) {
		// root is canonical; an absolute argument may spell it through a symlink
		if real, err := followExisting(filepath.Clean(target)); err == nil {
			target = real
		}
	} else {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	if !within(target, root) {
		return "", &PathEscapeError{Path: relativePath}
	}

	real, err := followExisting(target)
	if err != nil || !within(real, root) {
		return "", &PathEscapeError{Path: relativePath}
	}

	return target, nil
}

// followExisting evaluates symlinks on the deepest existing ancestor of path
// and re-attaches the components that do not exist yet.
func followExisting(path string) (string, error) {
	existing := path
	var tail []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		tail = append([]string{filepath.Base(existing)}, tail...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		// dangling link
		return "", err
	}
	return filepath.Join(append([]string{resolved}, tail...)...), nil
}

func within(path, root string) bool {
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
