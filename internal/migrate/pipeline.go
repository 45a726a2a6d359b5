package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jellytools/jfmigrate/internal/ids"
	"github.com/jellytools/jfmigrate/internal/logger"
	"github.com/jellytools/jfmigrate/internal/pathrw"
	"github.com/jellytools/jfmigrate/internal/sqlitedb"
)

// Pipeline runs the four migration steps in order, checkpointing each to the
// state file before the next begins. A resumed run skips completed steps and
// always re-derives the identifier replacement set from the migrated
// database.
type Pipeline struct {
	Config    *Config
	StateFile string
	Log       logger.Logger
}

// Run executes the pipeline. Cancellation is honored between steps; a step
// interrupted mid-flight is simply not checkpointed and re-runs in full next
// time.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.Config

	pathsTable, err := cfg.PathReplacements.Table()
	if err != nil {
		return err
	}
	fsTable, err := cfg.FSPathReplacements.Table()
	if err != nil {
		return err
	}
	pathEngine := pathrw.NewEngine(pathsTable, p.Log)
	fsEngine := pathrw.NewEngine(fsTable, p.Log)
	resolver := &pathrw.Resolver{
		SourceRoot:   cfg.Roots.Source,
		OriginalRoot: cfg.Roots.Original,
		TargetRoot:   cfg.Roots.Target,
		Paths:        pathEngine,
		FS:           fsEngine,
	}

	state := LoadState(p.StateFile, p.Log)

	// Step 1: copy files and rewrite paths.
	if state.IsComplete(StepPaths) {
		p.Log.Infof("step 1 (paths) already completed, skipping")
		p.restoreLibraryPaths(state, resolver)
	} else {
		p.Log.Infof("step 1: copying files and rewriting paths")
		runner := &JobRunner{Resolver: resolver, Rewriter: pathEngine, Log: p.Log}
		if err := runner.Run(cfg.PathJobs); err != nil {
			return err
		}
		p.recordLibraryPaths(state, resolver)
		state.MarkComplete(StepPaths)
		if err := state.Save(p.StateFile); err != nil {
			return err
		}
		p.Log.Infof("step 1 complete")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The replacement set depends on post-migration paths, so it is always
	// recomputed here rather than persisted.
	if state.LibraryDBTargetPath == "" {
		return errors.New("library database target path unknown; cannot derive identifier replacements")
	}
	p.Log.Infof("deriving identifier replacements from %s", state.LibraryDBTargetPath)
	repl, err := ids.GenerateReplacements(ctx, state.LibraryDBTargetPath, ids.GenerateOptions{
		Table:      cfg.Library.Table,
		IDColumn:   cfg.Library.IDColumn,
		TypeColumn: cfg.Library.TypeColumn,
		PathColumn: cfg.Library.PathColumn,
	}, p.Log)
	if err != nil {
		return fmt.Errorf("derive identifier replacements: %w", err)
	}
	for _, c := range repl.CheckCollisions() {
		p.Log.Warnf("identifiers %s and %s both map to %s (merged paths)", c.OldA, c.OldB, c.New)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 2: rename identifier-bearing files and folders.
	if state.IsComplete(StepIDPaths) {
		p.Log.Infof("step 2 (identifier paths) already completed, skipping")
	} else {
		p.Log.Infof("step 2: renaming identifier-bearing paths")
		idEngine := pathrw.NewIDEngine(pathrw.IDTable{
			Replacements: repl.PathStrings(),
			Slash:        pathsTable.Slash,
		}, p.Log)
		runner := &JobRunner{Resolver: resolver, Rewriter: idEngine, IDPhase: true, Log: p.Log}
		if err := runner.Run(cfg.IDPathJobs); err != nil {
			return err
		}
		if n, err := RemoveEmptyDirs(cfg.Roots.Target, p.Log); err != nil {
			p.Log.Warnf("empty folder cleanup: %v", err)
		} else if n > 0 {
			p.Log.Infof("removed %d empty folders", n)
		}
		state.MarkComplete(StepIDPaths)
		if err := state.Save(p.StateFile); err != nil {
			return err
		}
		p.Log.Infof("step 2 complete")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 3: update identifiers inside database tables.
	if state.IsComplete(StepDBIDs) {
		p.Log.Infof("step 3 (database identifiers) already completed, skipping")
	} else {
		p.Log.Infof("step 3: updating identifiers in database tables")
		if err := p.runIDJobs(state, resolver, repl); err != nil {
			return err
		}
		state.MarkComplete(StepDBIDs)
		if err := state.Save(p.StateFile); err != nil {
			return err
		}
		p.Log.Infof("step 3 complete")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 4: repair invalid item dates from the filesystem.
	if state.IsComplete(StepDates) {
		p.Log.Infof("step 4 (dates) already completed, skipping")
	} else {
		p.Log.Infof("step 4: repairing invalid item dates")
		if err := p.runDates(state, resolver); err != nil {
			return err
		}
		state.MarkComplete(StepDates)
		if err := state.Save(p.StateFile); err != nil {
			return err
		}
		p.Log.Infof("step 4 complete")
	}

	p.Log.Infof("migration complete")
	return nil
}

// recordLibraryPaths saves the resolved location of the primary library
// database so later steps and resumed runs can find it.
func (p *Pipeline) recordLibraryPaths(state *State, resolver *pathrw.Resolver) {
	for _, job := range p.Config.PathJobs {
		if filepath.Base(job.Source) != p.Config.Library.DBName {
			continue
		}
		target, _ := resolver.Resolve(job.Source, job.Target)
		state.LibraryDBSourcePath = job.Source
		state.LibraryDBTargetPath = target
		return
	}
}

// restoreLibraryPaths recovers the library database location on resume,
// falling back to re-resolving it from configuration when the state file
// predates that field.
func (p *Pipeline) restoreLibraryPaths(state *State, resolver *pathrw.Resolver) {
	if state.LibraryDBTargetPath != "" {
		p.Log.Infof("restored library database target: %s", state.LibraryDBTargetPath)
		return
	}
	p.recordLibraryPaths(state, resolver)
}

func (p *Pipeline) runIDJobs(state *State, resolver *pathrw.Resolver, repl *ids.Replacements) error {
	for _, job := range p.Config.IDJobs {
		target, _ := resolver.Resolve(job.Source, job.Target)
		if _, err := os.Stat(target); err != nil {
			p.Log.Warnf("skipping missing database: %s", target)
			continue
		}
		db, err := sqlitedb.Open(target)
		if err != nil {
			if target == state.LibraryDBTargetPath {
				return fmt.Errorf("open library database: %w", err)
			}
			p.Log.Errorf("open %s: %v", target, err)
			continue
		}
		names := make([]string, 0, len(job.Tables))
		for name := range job.Tables {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, err := sqlitedb.UpdateTableIDs(db, filepath.Base(target), name, job.Tables[name], repl, p.Log)
			if err != nil {
				if target == state.LibraryDBTargetPath {
					db.Close()
					return fmt.Errorf("update identifiers in %s: %w", name, err)
				}
				p.Log.Errorf("%s table %s: %v", target, name, err)
			}
		}
		db.Close()
	}
	return nil
}

func (p *Pipeline) runDates(state *State, resolver *pathrw.Resolver) error {
	db, err := sqlitedb.Open(state.LibraryDBTargetPath)
	if err != nil {
		return fmt.Errorf("open library database: %w", err)
	}
	defer db.Close()

	cfg := sqlitedb.DateConfig{
		Table:          p.Config.Library.Table,
		PathColumn:     p.Config.Library.PathColumn,
		CreatedColumn:  p.Config.Library.CreatedColumn,
		ModifiedColumn: p.Config.Library.ModifiedColumn,
	}
	_, err = sqlitedb.UpdateDates(db, p.Config.Library.DBName, cfg, resolver.ResolveFS, p.Log)
	return err
}
