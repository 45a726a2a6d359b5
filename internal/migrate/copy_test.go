package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jellytools/jfmigrate/internal/logger"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "a.txt")
	dst := filepath.Join(dir, "dst", "deep", "a.txt")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	copied, err := CopyFile(src, dst, logger.Nop())
	if err != nil || !copied {
		t.Fatalf("copy = %v, %v", copied, err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "payload" {
		t.Errorf("content = %q, %v", got, err)
	}

	// Existing targets are never overwritten.
	if err := os.WriteFile(dst, []byte("newer"), 0o644); err != nil {
		t.Fatal(err)
	}
	copied, err = CopyFile(src, dst, logger.Nop())
	if err != nil || copied {
		t.Fatalf("second copy = %v, %v", copied, err)
	}
	got, _ = os.ReadFile(dst)
	if string(got) != "newer" {
		t.Errorf("target overwritten: %q", got)
	}

	// Missing sources are a quiet no-op.
	copied, err = CopyFile(filepath.Join(dir, "missing"), dst, logger.Nop())
	if err != nil || copied {
		t.Errorf("missing source = %v, %v", copied, err)
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "sub", "b.txt")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	moved, err := MoveFile(src, dst, logger.Nop())
	if err != nil || !moved {
		t.Fatalf("move = %v, %v", moved, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source survived move")
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("target missing: %v", err)
	}

	// Same-path moves do nothing.
	moved, err = MoveFile(dst, dst, logger.Nop())
	if err != nil || moved {
		t.Errorf("self move = %v, %v", moved, err)
	}
}

func TestRemoveEmptyDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "keep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "keep", "file"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := RemoveEmptyDirs(root, logger.Nop())
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d", n)
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Error("empty tree survived")
	}
	if _, err := os.Stat(filepath.Join(root, "keep", "file")); err != nil {
		t.Error("non-empty folder removed")
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("root removed")
	}
}
