package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jellytools/jfmigrate/internal/logger"
	"github.com/jellytools/jfmigrate/internal/pathrw"
	"github.com/jellytools/jfmigrate/internal/sqlitedb"
)

// JobRunner executes file migration jobs: copying sources to their resolved
// targets and rewriting the copies. The same runner serves the plain path
// phase and the identifier phase; in the identifier phase the target file
// itself is also renamed when its own path carries an identifier.
type JobRunner struct {
	Resolver *pathrw.Resolver
	Rewriter pathrw.Rewriter
	IDPhase  bool
	Log      logger.Logger

	processed map[string]bool
}

// Run processes jobs in order. Glob sources expand to every matching file;
// a file already handled by an earlier job is skipped. Per-file database
// errors are logged and do not stop the run.
func (r *JobRunner) Run(jobs []Job) error {
	if r.processed == nil {
		r.processed = make(map[string]bool)
	}
	for _, job := range jobs {
		r.Log.Infof("processing job: %s", job.Source)
		if strings.Contains(job.Source, "*") {
			matches, err := filepath.Glob(job.Source)
			if err != nil {
				return fmt.Errorf("bad glob %s: %w", job.Source, err)
			}
			for _, src := range matches {
				if info, err := os.Stat(src); err != nil || info.IsDir() {
					continue
				}
				if err := r.processSource(src, job); err != nil {
					return err
				}
			}
			continue
		}
		if err := r.processSource(job.Source, job); err != nil {
			return err
		}
	}
	return nil
}

func (r *JobRunner) processSource(src string, job Job) error {
	if r.processed[src] {
		return nil
	}
	r.processed[src] = true

	target, skipCopy := r.Resolver.Resolve(src, job.Target)
	if !skipCopy {
		if _, err := CopyFile(src, target, r.jobLog(job)); err != nil {
			return err
		}
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return nil
	}
	if !job.NoLog {
		r.Log.Infof("processing %s", target)
	}
	if job.CopyOnly {
		return nil
	}

	switch strings.ToLower(filepath.Ext(target)) {
	case ".db":
		r.processDatabase(target, job)
	case ".xml", ".nfo":
		if st, err := updateXMLFile(target, r.Rewriter); err != nil {
			r.Log.Errorf("%s: %v", target, err)
		} else if !job.NoLog {
			r.Log.Infof("modified %d paths", st.Modified)
		}
	case ".mblink":
		if st, err := updateMblinkFile(target, r.Rewriter); err != nil {
			r.Log.Errorf("%s: %v", target, err)
		} else if !job.NoLog {
			r.Log.Infof("modified %d paths", st.Modified)
		}
	case ".json":
		if st, err := updateJSONFile(target, r.Rewriter); err != nil {
			r.Log.Errorf("%s: %v", target, err)
		} else if !job.NoLog {
			r.Log.Infof("modified %d paths", st.Modified)
		}
	}

	if r.IDPhase {
		out, st := r.Rewriter.RewriteString(target)
		if st.Modified > 0 {
			if !job.NoLog {
				r.Log.Infof("renaming to %s", out)
			}
			if _, err := MoveFile(target, out, r.Log); err != nil {
				return err
			}
		}
	}
	return nil
}

// processDatabase rewrites the configured tables of one database file.
// Failures are confined to the file: a plugin database with a missing table
// must not abort the migration.
func (r *JobRunner) processDatabase(target string, job Job) {
	if len(job.Tables) == 0 {
		return
	}
	db, err := sqlitedb.Open(target)
	if err != nil {
		r.Log.Errorf("open %s: %v", target, err)
		return
	}
	defer db.Close()

	names := make([]string, 0, len(job.Tables))
	for name := range job.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !job.NoLog {
			r.Log.Infof("processing table %s", name)
		}
		_, err := sqlitedb.UpdateTablePaths(db, filepath.Base(target), name, job.Tables[name], r.Rewriter, r.jobLog(job))
		if err != nil {
			r.Log.Errorf("%s table %s: %v", target, name, err)
		}
	}
}

func (r *JobRunner) jobLog(job Job) logger.Logger {
	if job.NoLog {
		return logger.Nop()
	}
	return r.Log
}
