// Package testutil provides shared test helpers for setting up vaults.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/vaultkeeper/internal/storage"
)

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T, opts ...storage.Option) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir, opts...)
	require.NoError(t, err)
	return store.Root(), store
}

// WriteFile creates rel under root with content, making parent dirs.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

// ReadFile returns the content of rel under root, failing the test if it
// cannot be read.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// Exists reports whether rel is present under root.
func Exists(t *testing.T, root, rel string) bool {
	t.Helper()
	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}
