package migrate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jellytools/jfmigrate/internal/ids"
	"github.com/jellytools/jfmigrate/internal/logger"
	"github.com/jellytools/jfmigrate/internal/sqlitedb"
)

func mustExec(t *testing.T, db *sql.DB, stmt string, args ...any) {
	t.Helper()
	if _, err := db.Exec(stmt, args...); err != nil {
		t.Fatalf("exec %s: %v", stmt, err)
	}
}

// pipelineFixture lays out a miniature installation: a backup with a library
// database, a media file, and an identifier-named link file, all referring to
// the original install under /old/jf.
type pipelineFixture struct {
	cfg       *Config
	stateFile string
	srcRoot   string
	tgtRoot   string
	oldID     ids.ID
	newID     ids.ID
	tgtMovie  string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	base := t.TempDir()
	srcRoot := filepath.Join(base, "backup")
	tgtRoot := filepath.Join(base, "new")

	oldMovie := "/old/jf/media/movie.mkv"
	tgtMovie := filepath.Join(tgtRoot, "media", "movie.mkv")
	oldID := ids.Hash("Movie", oldMovie)
	newID := ids.Hash("Movie", tgtMovie)

	for _, dir := range []string{
		filepath.Join(srcRoot, "data"),
		filepath.Join(srcRoot, "media"),
		filepath.Join(srcRoot, "links"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(srcRoot, "media", "movie.mkv"), []byte("movie"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcRoot, "links", oldID.Hex()+".mblink"), []byte(oldMovie), 0o644); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(srcRoot, "data", "jellyfin.db")
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	mustExec(t, db, `CREATE TABLE BaseItems (Id BLOB, type TEXT, Path TEXT, DateCreated TEXT, DateModified TEXT)`)
	mustExec(t, db, `INSERT INTO BaseItems VALUES (?, ?, ?, ?, ?)`,
		oldID.Bytes(), "Movie", oldMovie, "0001-01-01 00:00:00Z", "2022-10-21 15:30:45Z")
	db.Close()

	cfg := &Config{
		Roots: Roots{Original: "/old/jf", Source: srcRoot, Target: tgtRoot},
		PathReplacements: ReplacementsConfig{
			TargetSlash: "/",
			Mappings:    []MappingConfig{{Source: "/old/jf", Target: tgtRoot}},
		},
		FSPathReplacements: ReplacementsConfig{TargetSlash: "/", NoWarnings: true},
		Library: LibraryConfig{
			DBName: "jellyfin.db", Table: "BaseItems",
			IDColumn: "Id", TypeColumn: "type", PathColumn: "Path",
			CreatedColumn: "DateCreated", ModifiedColumn: "DateModified",
		},
		PathJobs: []Job{
			{
				Source: dbPath,
				Target: "auto",
				Tables: map[string]sqlitedb.TableColumns{
					"BaseItems": {Path: []string{"Path"}},
				},
			},
			{Source: filepath.Join(srcRoot, "media", "*"), Target: "auto"},
			{Source: filepath.Join(srcRoot, "links", "*"), Target: "auto"},
		},
		IDPathJobs: []Job{
			{Source: filepath.Join(srcRoot, "links", "*.mblink"), Target: "auto-existing"},
		},
		IDJobs: []IDJob{
			{
				Source: dbPath,
				Target: "auto-existing",
				Tables: map[string]sqlitedb.IDColumns{
					"BaseItems": {Binary: []string{"Id"}},
				},
			},
		},
	}

	return &pipelineFixture{
		cfg:       cfg,
		stateFile: filepath.Join(base, "state.json"),
		srcRoot:   srcRoot,
		tgtRoot:   tgtRoot,
		oldID:     oldID,
		newID:     newID,
		tgtMovie:  tgtMovie,
	}
}

func (f *pipelineFixture) run(t *testing.T) {
	t.Helper()
	p := &Pipeline{Config: f.cfg, StateFile: f.stateFile, Log: logger.Nop()}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newPipelineFixture(t)
	f.run(t)

	// All four steps are checkpointed, and the library target recorded.
	state := LoadState(f.stateFile, logger.Nop())
	for _, step := range []Step{StepPaths, StepIDPaths, StepDBIDs, StepDates} {
		if !state.IsComplete(step) {
			t.Errorf("step %s not checkpointed", step)
		}
	}
	tgtDB := filepath.Join(f.tgtRoot, "data", "jellyfin.db")
	if state.LibraryDBTargetPath != tgtDB {
		t.Errorf("library target = %q", state.LibraryDBTargetPath)
	}

	// The media file was copied and the database path rewritten.
	if _, err := os.Stat(f.tgtMovie); err != nil {
		t.Fatalf("media file not copied: %v", err)
	}
	db, err := sqlitedb.Open(tgtDB)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var path, created string
	var id []byte
	if err := db.QueryRow(`SELECT Path, Id, DateCreated FROM BaseItems`).Scan(&path, &id, &created); err != nil {
		t.Fatal(err)
	}
	if path != f.tgtMovie {
		t.Errorf("Path = %q, want %q", path, f.tgtMovie)
	}

	// The identifier was recomputed from the new path.
	got, err := ids.FromBytes(id)
	if err != nil {
		t.Fatal(err)
	}
	if got != f.newID {
		t.Errorf("Id = %s, want %s", got, f.newID)
	}

	// The invalid creation date was repaired from the copied file.
	info, err := os.Stat(f.tgtMovie)
	if err != nil {
		t.Fatal(err)
	}
	if created != sqlitedb.FormatDate(info.ModTime().UnixNano()) {
		t.Errorf("DateCreated = %q", created)
	}

	// The link file was renamed after the new identifier, content rewritten.
	renamed := filepath.Join(f.tgtRoot, "links", f.newID.Hex()+".mblink")
	content, err := os.ReadFile(renamed)
	if err != nil {
		t.Fatalf("renamed link missing: %v", err)
	}
	if string(content) != f.tgtMovie {
		t.Errorf("link content = %q", content)
	}
	if _, err := os.Stat(filepath.Join(f.tgtRoot, "links", f.oldID.Hex()+".mblink")); !os.IsNotExist(err) {
		t.Error("old link name survived")
	}
}

func TestPipelineResume(t *testing.T) {
	f := newPipelineFixture(t)
	f.run(t)

	// Replace the source media file; a resumed run must not copy it again
	// because every step is already checkpointed.
	if err := os.WriteFile(filepath.Join(f.srcRoot, "media", "movie.mkv"), []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	f.run(t)

	content, err := os.ReadFile(f.tgtMovie)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "movie" {
		t.Errorf("completed step re-ran: %q", content)
	}
}

func TestPipelineResumeAfterFirstStep(t *testing.T) {
	f := newPipelineFixture(t)
	f.run(t)

	// Simulate a run killed after step 1: only the paths checkpoint present.
	state := LoadState(f.stateFile, logger.Nop())
	state.CompletedSteps = []Step{StepPaths}
	if err := state.Save(f.stateFile); err != nil {
		t.Fatal(err)
	}
	f.run(t)

	state = LoadState(f.stateFile, logger.Nop())
	for _, step := range []Step{StepPaths, StepIDPaths, StepDBIDs, StepDates} {
		if !state.IsComplete(step) {
			t.Errorf("step %s not checkpointed after resume", step)
		}
	}
}

func TestPipelineFailsWithoutLibraryDB(t *testing.T) {
	f := newPipelineFixture(t)
	f.cfg.PathJobs = f.cfg.PathJobs[1:] // drop the library database job
	p := &Pipeline{Config: f.cfg, StateFile: f.stateFile, Log: logger.Nop()}
	err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "library database target path unknown") {
		t.Errorf("err = %v", err)
	}
}
