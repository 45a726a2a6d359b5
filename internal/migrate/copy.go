package migrate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/jellytools/jfmigrate/internal/logger"
)

// CopyFile copies source to target, creating parent directories. Existing
// targets are kept, which makes a resumed run a no-op for files already
// copied. Returns whether a copy happened.
func CopyFile(source, target string, log logger.Logger) (bool, error) {
	info, err := os.Stat(source)
	if err != nil || !info.Mode().IsRegular() {
		return false, nil
	}
	if _, err := os.Stat(target); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, fmt.Errorf("create target directory: %w", err)
	}

	log.Debugf("copying %s -> %s", source, target)
	in, err := os.Open(source)
	if err != nil {
		return false, err
	}
	defer in.Close()
	out, err := os.Create(target)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, fmt.Errorf("copy %s: %w", source, err)
	}
	if err := out.Close(); err != nil {
		return false, fmt.Errorf("copy %s: %w", source, err)
	}
	return true, nil
}

// MoveFile renames source to target, creating parent directories. Missing
// sources and same-path moves are no-ops.
func MoveFile(source, target string, log logger.Logger) (bool, error) {
	if source == target {
		return false, nil
	}
	info, err := os.Stat(source)
	if err != nil || !info.Mode().IsRegular() {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, fmt.Errorf("create target directory: %w", err)
	}
	log.Debugf("moving %s -> %s", source, target)
	if err := os.Rename(source, target); err != nil {
		return false, fmt.Errorf("move %s: %w", source, err)
	}
	return true, nil
}

// RemoveEmptyDirs deletes empty directories under root, repeating until none
// remain so emptied parents go too. Root itself is kept.
func RemoveEmptyDirs(root string, log logger.Logger) (int, error) {
	deleted := 0
	for {
		var empty []string
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() || path == root {
				return nil
			}
			entries, err := os.ReadDir(path)
			if err == nil && len(entries) == 0 {
				empty = append(empty, path)
			}
			return nil
		})
		if err != nil {
			return deleted, err
		}
		if len(empty) == 0 {
			return deleted, nil
		}
		// Deepest first, so nested empties fall in one pass where possible.
		sort.Slice(empty, func(i, j int) bool { return len(empty[i]) > len(empty[j]) })
		for _, path := range empty {
			log.Debugf("removing empty folder: %s", path)
			if err := os.Remove(path); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
}
