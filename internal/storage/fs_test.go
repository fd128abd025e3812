package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/starford/vaultkeeper/internal/apperr"
)

func tempVault(t *testing.T, opts ...Option) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

func mustRead(t *testing.T, s *FS, path string) string {
	t.Helper()
	got, err := s.Read(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(got)
}

func skipSymlinksOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := "# Hello\nWorld\n"
	if err := s.Write("note.md", []byte(content)); err != nil {
		t.Fatal(err)
	}
	if got := mustRead(t, s, "note.md"); got != content {
		t.Errorf("got %q, want %q", got, content)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatal(err)
	}
	if got := mustRead(t, s, "a/b/c.md"); got != "deep" {
		t.Errorf("got %q", got)
	}
}

func TestWriteKeepsMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	s := tempVault(t)
	abs := filepath.Join(s.Root(), "mode.md")
	if err := os.WriteFile(abs, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("mode.md", []byte("new")); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %v, want 0600", perm)
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("atomic.md", []byte("original content")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("atomic.md", []byte("updated content")); err != nil {
		t.Fatal(err)
	}
	if got := mustRead(t, s, "atomic.md"); got != "updated content" {
		t.Errorf("got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".vaultkeeper-tmp-*"))
	if len(matches) > 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestWriteThroughSymlink(t *testing.T) {
	skipSymlinksOnWindows(t)
	s := tempVault(t)
	if err := s.Write("notes/real.md", []byte("OLD")); err != nil {
		t.Fatal(err)
	}
	alias := filepath.Join(s.root, "alias.md")
	if err := os.Symlink(filepath.Join("notes", "real.md"), alias); err != nil {
		t.Fatal(err)
	}

	if err := s.Write("alias.md", []byte("NEW")); err != nil {
		t.Fatal(err)
	}
	if got := mustRead(t, s, "notes/real.md"); got != "NEW" {
		t.Errorf("target = %q, want NEW", got)
	}
	info, err := os.Lstat(alias)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("alias.md was replaced by a regular file")
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, "notes", ".vaultkeeper-tmp-*"))
	if len(matches) > 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestCreate(t *testing.T) {
	s := tempVault(t)
	if err := s.Create("x/y.md", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := s.Create("x/y.md", []byte("other")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if got := mustRead(t, s, "x/y.md"); got != "hello" {
		t.Errorf("content changed to %q", got)
	}
}

func TestCreateOverDirectory(t *testing.T) {
	s := tempVault(t)
	if err := os.Mkdir(filepath.Join(s.Root(), "folder"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Create("folder", []byte("x")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestAppend(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("log.md", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append("log.md", []byte("\ntwo")); err != nil {
		t.Fatal(err)
	}
	if got := mustRead(t, s, "log.md"); got != "one\ntwo" {
		t.Errorf("got %q", got)
	}
}

func TestAppendMissing(t *testing.T) {
	s := tempVault(t)
	err := s.Append("nope.md", []byte("x"))
	if !errors.Is(err, apperr.ErrNotFound) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotFound wrapping ErrNotExist, got %v", err)
	}
	exists, err := s.Exists("nope.md")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("append must not create the file")
	}
}

func TestPathThroughFile(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a.md", []byte("A")); err != nil {
		t.Fatal(err)
	}

	exists, err := s.Exists("a.md/sub")
	if err != nil || exists {
		t.Errorf("Exists = %v, %v; want false, nil", exists, err)
	}
	if _, err := s.Read("a.md/b.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Read: expected ErrNotFound, got %v", err)
	}
	if err := s.Append("a.md/b.md", []byte("x")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Append: expected ErrNotFound, got %v", err)
	}
	if err := s.Move("a.md/b.md", "c.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Move: expected ErrNotFound, got %v", err)
	}
}

func TestExistsDanglingSymlink(t *testing.T) {
	skipSymlinksOnWindows(t)
	s := tempVault(t)
	if err := os.Symlink(filepath.Join(s.root, "gone"), filepath.Join(s.root, "link")); err != nil {
		t.Fatal(err)
	}
	exists, err := s.Exists("link")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("dangling symlink reported as existing")
	}
}

func TestMove(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("old.md", []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := s.Move("old.md", "sub/new.md"); err != nil {
		t.Fatal(err)
	}
	if got := mustRead(t, s, "sub/new.md"); got != "data" {
		t.Errorf("got %q", got)
	}
	if _, err := s.Read("old.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old path still readable: %v", err)
	}
}

func TestMoveRefusesOverwrite(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a.md", []byte("A")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("b.md", []byte("B")); err != nil {
		t.Fatal(err)
	}
	if err := s.Move("a.md", "b.md"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if a, b := mustRead(t, s, "a.md"), mustRead(t, s, "b.md"); a != "A" || b != "B" {
		t.Errorf("files changed: a=%q b=%q", a, b)
	}
}

func TestMoveMissingSource(t *testing.T) {
	s := tempVault(t)
	if err := s.Move("ghost.md", "b.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReadDir(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("dir/001 a.md", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("dir/sub/002 b.md", []byte("b")); err != nil {
		t.Fatal(err)
	}

	names, err := s.ReadDir("dir")
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(names)
	if want := []string{"001 a.md", "sub"}; !slices.Equal(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	if _, err := s.ReadDir("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "vaultkeeper-test-*")
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	if _, err := NewFS(f.Name()); err == nil {
		t.Fatal("expected error when root is a file")
	}
}
