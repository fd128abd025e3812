package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/starford/vaultkeeper/internal/apperr"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FS implements Provider backed by the local file system.
type FS struct {
	root           string // absolute path to vault directory
	realRoot       string // root with symlinks resolved
	strictSymlinks bool
}

// Option configures an FS.
type Option func(*FS)

// WithStrictSymlinks toggles the symlink check in SafePath. When off,
// containment is a purely textual test on normalized paths.
func WithStrictSymlinks(strict bool) Option {
	return func(f *FS) {
		f.strictSymlinks = strict
	}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...Option) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	realRoot, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root links: %w", err)
	}

	f := &FS{root: abs, realRoot: realRoot, strictSymlinks: true}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Root returns the absolute vault root.
func (f *FS) Root() string {
	return f.root
}

// Exists reports whether path resolves to an existing file or directory.
// Symlinks are followed, so a dangling link does not count.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.SafePath(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(abs); err != nil {
		if missing(err) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return true, nil
}

// ReadDir lists the names of the direct entries of the directory at path.
func (f *FS) ReadDir(path string) ([]string, error) {
	abs, err := f.SafePath(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read dir %s: %w", path, notFound(err))
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.SafePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, notFound(err))
	}
	return data, nil
}

// Write atomically writes content: tmp file, fsync, rename.
// An existing file keeps its permission bits. A symlink is written
// through, so the link stays and its target gets the content.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.SafePath(path)
	if err != nil {
		return err
	}
	target := abs
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		target = resolved
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	perm := fs.FileMode(filePerm)
	if info, statErr := os.Stat(target); statErr == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".vaultkeeper-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Create writes a brand-new file, creating missing parent directories.
// It never replaces anything already at path.
func (f *FS) Create(path string, content []byte) error {
	abs, err := f.SafePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), dirPerm); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	file, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage: create %s: %w", path, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("storage: create %s: %w", path, err)
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		_ = os.Remove(abs)
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(abs)
		return fmt.Errorf("storage: close %s: %w", path, err)
	}
	return nil
}

// Append adds content to the end of an existing file.
func (f *FS) Append(path string, content []byte) error {
	abs, err := f.SafePath(path)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(abs, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", path, notFound(err))
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return fmt.Errorf("storage: append %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", path, err)
	}
	return nil
}

// Move renames a file within the vault. It refuses to replace an
// existing destination.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.SafePath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.SafePath(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(absOld); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, notFound(err))
	}
	if _, err := os.Lstat(absNew); err == nil {
		return fmt.Errorf("storage: move to %s: %w", newPath, apperr.ErrAlreadyExists)
	} else if !missing(err) {
		return fmt.Errorf("storage: stat %s: %w", newPath, err)
	}
	dir := filepath.Dir(absNew)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}

// notFound tags a missing-file error with apperr.ErrNotFound while
// keeping the original error in the chain.
func notFound(err error) error {
	if missing(err) {
		return fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	}
	return err
}

// missing reports whether err means nothing is at the path. A path that
// runs through a regular file (ENOTDIR) counts as missing.
func missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
