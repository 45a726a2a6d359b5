package pathrw

import (
	"testing"

	"github.com/jellytools/jfmigrate/internal/logger"
)

func newTestResolver() *Resolver {
	paths := &Table{
		Mappings: []Mapping{{Source: "/old/jellyfin", Target: "/config"}},
		Slash:    SlashUnix,
	}
	fs := &Table{
		Mappings: []Mapping{{Source: "/config", Target: "/new/jellyfin/config"}},
		Slash:    SlashUnix,
	}
	return &Resolver{
		SourceRoot:   "/backup/jellyfin",
		OriginalRoot: "/old/jellyfin",
		TargetRoot:   "/new/jellyfin",
		Paths:        NewEngine(paths, logger.Nop()),
		FS:           NewEngine(fs, logger.Nop()),
	}
}

func TestResolveExplicitTarget(t *testing.T) {
	r := newTestResolver()
	got, skip := r.Resolve("/backup/jellyfin/data/library.db", "/tmp/out/library.db")
	if got != "/tmp/out/library.db" || skip {
		t.Errorf("explicit target: %q skip=%v", got, skip)
	}
}

func TestResolveAuto(t *testing.T) {
	r := newTestResolver()
	got, skip := r.Resolve("/backup/jellyfin/data/library.db", "auto")
	if got != "/new/jellyfin/config/data/library.db" {
		t.Errorf("auto target = %q", got)
	}
	if skip {
		t.Error("auto must not skip the copy")
	}
}

func TestResolveAutoExisting(t *testing.T) {
	r := newTestResolver()
	got, skip := r.Resolve("/backup/jellyfin/data/library.db", "auto-existing")
	if got != "/new/jellyfin/config/data/library.db" {
		t.Errorf("auto-existing target = %q", got)
	}
	if !skip {
		t.Error("auto-existing must skip the copy")
	}
}

func TestResolveSourceOutsideRoot(t *testing.T) {
	// A source outside SourceRoot is not rebased; the tables still apply.
	r := newTestResolver()
	got, _ := r.Resolve("/old/jellyfin/data/library.db", "auto")
	if got != "/new/jellyfin/config/data/library.db" {
		t.Errorf("unrebased source = %q", got)
	}
}

func TestResolveFS(t *testing.T) {
	r := newTestResolver()
	got := r.ResolveFS("/config/metadata/library/ab/poster.jpg")
	if got != "/new/jellyfin/config/metadata/library/ab/poster.jpg" {
		t.Errorf("ResolveFS = %q", got)
	}
}

func TestRerootKeepsDrivePaths(t *testing.T) {
	r := newTestResolver()
	if got := r.reroot(`C:/Media/poster.jpg`); got != "C:/Media/poster.jpg" {
		t.Errorf("drive path re-rooted: %q", got)
	}
	if got := r.reroot("/elsewhere/file"); got != "/new/jellyfin/elsewhere/file" {
		t.Errorf("rooted path = %q", got)
	}
	if got := r.reroot("relative/file"); got != "/new/jellyfin/relative/file" {
		t.Errorf("relative path = %q", got)
	}
}

func TestRebase(t *testing.T) {
	if got := rebase("/a/b/c/d", "/a/b", "/x"); got != "/x/c/d" {
		t.Errorf("rebase = %q", got)
	}
	if got := rebase("/other/c", "/a/b", "/x"); got != "/other/c" {
		t.Errorf("rebase outside root = %q", got)
	}
}
