package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/vaultkeeper/internal/apperr"
)

// SafePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
//
// The input is cleaned before the containment check so that "." and ".."
// segments cannot smuggle the path out of the root. An empty path
// resolves to the root itself.
func (f *FS) SafePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) || filepath.VolumeName(cleaned) != "" {
		return "", fmt.Errorf("%w: absolute path %q", apperr.ErrOutsideVault, rel)
	}
	abs := filepath.Join(f.root, cleaned)
	if !within(f.root, abs) {
		return "", fmt.Errorf("%w: %q", apperr.ErrOutsideVault, rel)
	}
	if f.strictSymlinks {
		if err := f.checkSymlinks(rel, abs); err != nil {
			return "", err
		}
	}
	return abs, nil
}

// maxLinkHops bounds how many dangling links checkSymlinks follows.
const maxLinkHops = 40

// checkSymlinks resolves the deepest existing ancestor of abs and makes
// sure the real location still lies under the real root.
func (f *FS) checkSymlinks(rel, abs string) error {
	return f.checkLinks(rel, abs, 0)
}

func (f *FS) checkLinks(rel, p string, hops int) error {
	existing := p
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !missing(err) {
			return fmt.Errorf("storage: lstat %s: %w", rel, err)
		}
		parent := filepath.Dir(existing)
		if parent == existing || !f.inside(parent) {
			return nil
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err == nil {
		if !within(f.realRoot, resolved) {
			return fmt.Errorf("%w: %q links to %s", apperr.ErrOutsideVault, rel, resolved)
		}
		return nil
	}
	if !missing(err) || hops >= maxLinkHops {
		return fmt.Errorf("%w: unresolvable link in %q: %v", apperr.ErrOutsideVault, rel, err)
	}

	// existing is a link whose target is missing. Its target must still
	// be inside the vault.
	dir, err := filepath.EvalSymlinks(filepath.Dir(existing))
	if err != nil {
		return fmt.Errorf("%w: unresolvable link in %q: %v", apperr.ErrOutsideVault, rel, err)
	}
	target, err := os.Readlink(existing)
	if err != nil {
		return fmt.Errorf("storage: readlink %s: %w", rel, err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	target = filepath.Clean(target)
	if !f.inside(target) {
		return fmt.Errorf("%w: %q links to %s", apperr.ErrOutsideVault, rel, target)
	}
	return f.checkLinks(rel, target, hops+1)
}

// inside reports whether p is textually under the root or the real root.
func (f *FS) inside(p string) bool {
	return within(f.root, p) || within(f.realRoot, p)
}

// within reports whether p equals root or lies beneath it.
func within(root, p string) bool {
	if p == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(p, prefix)
}
