package migrate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"github.com/jellytools/jfmigrate/internal/logger"
)

const (
	spaceSafetyMargin = 0.10
	spaceMinBuffer    = 500 * 1024 * 1024
)

// SpaceReport summarizes the free-space estimate for a migration target.
type SpaceReport struct {
	SourceSize uint64
	TargetSize uint64
	Required   uint64
	Available  uint64
}

// Sufficient reports whether the target volume has room for the remaining
// data.
func (r SpaceReport) Sufficient() bool { return r.Available >= r.Required }

// InsufficientSpaceError is returned in strict mode when the target volume
// cannot hold the migration.
type InsufficientSpaceError struct {
	Required  uint64
	Available uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space: %s required, %s available",
		humanize.IBytes(e.Required), humanize.IBytes(e.Available))
}

// CheckDiskSpace estimates the space a migration still needs: the source
// tree size minus what already sits in the target (resumed runs), plus a 10%
// and 500 MiB safety buffer, compared against the free space of the target
// volume. In strict mode a shortfall is an InsufficientSpaceError; otherwise
// the caller decides from the report.
func CheckDiskSpace(sourceRoot, targetRoot string, strict bool, log logger.Logger) (SpaceReport, error) {
	log.Infof("checking disk space requirements")

	var report SpaceReport
	report.SourceSize = treeSize(sourceRoot)
	log.Infof("source size: %s", humanize.IBytes(report.SourceSize))

	if _, err := os.Stat(targetRoot); err == nil {
		report.TargetSize = treeSize(targetRoot)
		log.Infof("existing target size: %s", humanize.IBytes(report.TargetSize))
	}

	remaining := uint64(0)
	if report.SourceSize > report.TargetSize {
		remaining = report.SourceSize - report.TargetSize
	}
	report.Required = remaining + uint64(float64(remaining)*spaceSafetyMargin) + spaceMinBuffer

	free, err := freeSpace(targetRoot)
	if err != nil {
		return report, fmt.Errorf("measure free space: %w", err)
	}
	report.Available = free

	log.Infof("remaining data to copy: %s", humanize.IBytes(remaining))
	log.Infof("required free space:    %s", humanize.IBytes(report.Required))
	log.Infof("available space:        %s", humanize.IBytes(report.Available))

	if !report.Sufficient() {
		if strict {
			return report, &InsufficientSpaceError{Required: report.Required, Available: report.Available}
		}
		log.Warnf("insufficient disk space detected")
	} else {
		log.Infof("disk space check passed")
	}
	return report, nil
}

// treeSize totals the regular file sizes under root. Unreadable entries are
// skipped; an estimate beats an abort here.
func treeSize(root string) uint64 {
	var total uint64
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

// freeSpace reports the free bytes of the volume holding path, walking up to
// the nearest existing ancestor when the target does not exist yet.
func freeSpace(path string) (uint64, error) {
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
