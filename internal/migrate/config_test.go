package migrate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
logging:
  file: migration.log
roots:
  original: /old/jellyfin
  source: /backup/jellyfin
  target: /new/jellyfin
path_replacements:
  target_slash: "/"
  mappings:
    - source: /old/jellyfin
      target: /new/jellyfin
  virtual_paths:
    "%MetadataPath%": /new/jellyfin/metadata
fs_path_replacements:
  target_slash: "/"
  no_warnings: true
path_jobs:
  - source: data/jellyfin.db
    target: auto
    tables:
      BaseItems:
        path_columns: [Path]
        json_columns: [data]
        image_columns: [Images]
  - source: /backup/jellyfin/metadata/*.nfo
    target: auto
    no_log: true
id_path_jobs:
  - source: metadata/library/*
    target: auto-existing
id_jobs:
  - source: data/jellyfin.db
    target: auto-existing
    tables:
      BaseItems:
        bin: [Id]
        str: [PresentationUniqueKey]
        ancestor-str: [AncestorIdText]
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Roots.Original != "/old/jellyfin" || cfg.Roots.Target != "/new/jellyfin" {
		t.Errorf("roots = %+v", cfg.Roots)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default level = %q", cfg.Logging.Level)
	}
	if cfg.Library.DBName != "jellyfin.db" {
		t.Errorf("default db name = %q", cfg.Library.DBName)
	}

	// Relative sources are joined under the source root.
	if cfg.PathJobs[0].Source != "/backup/jellyfin/data/jellyfin.db" {
		t.Errorf("relative source = %q", cfg.PathJobs[0].Source)
	}
	// Absolute sources stay.
	if cfg.PathJobs[1].Source != "/backup/jellyfin/metadata/*.nfo" {
		t.Errorf("absolute source = %q", cfg.PathJobs[1].Source)
	}
	if !cfg.PathJobs[1].NoLog {
		t.Error("no_log not decoded")
	}

	tc := cfg.PathJobs[0].Tables["BaseItems"]
	if len(tc.Path) != 1 || tc.Path[0] != "Path" || len(tc.JSON) != 1 || len(tc.Image) != 1 {
		t.Errorf("table columns = %+v", tc)
	}

	ic := cfg.IDJobs[0].Tables["BaseItems"]
	if len(ic.Binary) != 1 || ic.Binary[0] != "Id" {
		t.Errorf("bin columns = %+v", ic)
	}
	if len(ic.Hex) != 1 || len(ic.AncestorHex) != 1 {
		t.Errorf("id columns = %+v", ic)
	}

	table, err := cfg.PathReplacements.Table()
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Mappings) != 1 || table.VirtualPaths["%MetadataPath%"] == "" {
		t.Errorf("table = %+v", table)
	}
	fsTable, err := cfg.FSPathReplacements.Table()
	if err != nil {
		t.Fatal(err)
	}
	if !fsTable.NoWarnings {
		t.Error("no_warnings not carried into table")
	}
}

func TestLoadConfigMissingSections(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
path_jobs:
  - source: ""
    target: auto
`))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	for _, want := range []string{
		"roots.original is required",
		"roots.source is required",
		"roots.target is required",
		"path_jobs[0]: source is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadConfigBadSlash(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
roots:
  original: /a
  source: /b
  target: /c
path_replacements:
  target_slash: "|"
`))
	if err == nil || !strings.Contains(err.Error(), "invalid target separator") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("missing file accepted")
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		t.Error("missing file should not be a validation error")
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "roots: ["))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}
