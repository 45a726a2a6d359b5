// Package migrate orchestrates a media server migration: configuration,
// checkpointed pipeline state, file jobs, sidecar rewrites, and the disk
// space check.
package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jellytools/jfmigrate/internal/pathrw"
	"github.com/jellytools/jfmigrate/internal/sqlitedb"
)

// Config is the full migration configuration, decoded from one YAML file.
type Config struct {
	Logging            LoggingConfig      `yaml:"logging"`
	Roots              Roots              `yaml:"roots"`
	PathReplacements   ReplacementsConfig `yaml:"path_replacements"`
	FSPathReplacements ReplacementsConfig `yaml:"fs_path_replacements"`
	Library            LibraryConfig      `yaml:"library"`
	PathJobs           []Job              `yaml:"path_jobs"`
	IDPathJobs         []Job              `yaml:"id_path_jobs"`
	IDJobs             []IDJob            `yaml:"id_jobs"`
}

// LoggingConfig selects the log sink.
type LoggingConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Roots are the three directory anchors of a migration.
type Roots struct {
	// Original is where the old installation lived, as recorded inside its
	// databases.
	Original string `yaml:"original"`
	// Source is where the files are read from (usually a backup copy).
	Source string `yaml:"source"`
	// Target is where migrated files are written.
	Target string `yaml:"target"`
}

// ReplacementsConfig declares one ordered prefix replacement table.
type ReplacementsConfig struct {
	TargetSlash  string            `yaml:"target_slash"`
	Mappings     []MappingConfig   `yaml:"mappings"`
	VirtualPaths map[string]string `yaml:"virtual_paths"`
	NoWarnings   bool              `yaml:"no_warnings"`
}

// MappingConfig is one source→target pair.
type MappingConfig struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Table converts the declared mappings into a rewrite table.
func (c ReplacementsConfig) Table() (*pathrw.Table, error) {
	slash, err := pathrw.ParseSlash(c.TargetSlash)
	if err != nil {
		return nil, err
	}
	mappings := make([]pathrw.Mapping, len(c.Mappings))
	for i, m := range c.Mappings {
		mappings[i] = pathrw.Mapping{Source: m.Source, Target: m.Target}
	}
	return &pathrw.Table{
		Mappings:     mappings,
		Slash:        slash,
		VirtualPaths: c.VirtualPaths,
		NoWarnings:   c.NoWarnings,
	}, nil
}

// LibraryConfig locates the primary library database and its item table.
type LibraryConfig struct {
	DBName         string `yaml:"db_name"`
	Table          string `yaml:"table"`
	IDColumn       string `yaml:"id_column"`
	TypeColumn     string `yaml:"type_column"`
	PathColumn     string `yaml:"path_column"`
	CreatedColumn  string `yaml:"created_column"`
	ModifiedColumn string `yaml:"modified_column"`
}

// Job is one file migration unit: a source (file or glob), a target mode,
// and optional per-table column roles for database files.
type Job struct {
	Source   string                           `yaml:"source"`
	Target   string                           `yaml:"target"`
	Tables   map[string]sqlitedb.TableColumns `yaml:"tables"`
	CopyOnly bool                             `yaml:"copy_only"`
	NoLog    bool                             `yaml:"no_log"`
}

// IDJob is one identifier update unit over a database file.
type IDJob struct {
	Source string                        `yaml:"source"`
	Target string                        `yaml:"target"`
	Tables map[string]sqlitedb.IDColumns `yaml:"tables"`
}

// ConfigError collects every validation problem of a configuration file.
type ConfigError struct {
	Path     string
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// LoadConfig reads, decodes and validates a configuration file. Relative job
// sources are resolved against the source root.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Problems: []string{err.Error()}}
	}

	var problems []string
	if cfg.Roots.Original == "" {
		problems = append(problems, "roots.original is required")
	}
	if cfg.Roots.Source == "" {
		problems = append(problems, "roots.source is required")
	}
	if cfg.Roots.Target == "" {
		problems = append(problems, "roots.target is required")
	}
	if _, err := pathrw.ParseSlash(cfg.PathReplacements.TargetSlash); err != nil {
		problems = append(problems, fmt.Sprintf("path_replacements: %v", err))
	}
	if _, err := pathrw.ParseSlash(cfg.FSPathReplacements.TargetSlash); err != nil {
		problems = append(problems, fmt.Sprintf("fs_path_replacements: %v", err))
	}

	checkJob := func(section string, i int, source, target string) {
		if source == "" {
			problems = append(problems, fmt.Sprintf("%s[%d]: source is required", section, i))
		}
		if target == "" {
			problems = append(problems, fmt.Sprintf("%s[%d]: target is required", section, i))
		}
	}
	for i := range cfg.PathJobs {
		checkJob("path_jobs", i, cfg.PathJobs[i].Source, cfg.PathJobs[i].Target)
	}
	for i := range cfg.IDPathJobs {
		checkJob("id_path_jobs", i, cfg.IDPathJobs[i].Source, cfg.IDPathJobs[i].Target)
	}
	for i := range cfg.IDJobs {
		checkJob("id_jobs", i, cfg.IDJobs[i].Source, cfg.IDJobs[i].Target)
	}
	if len(problems) > 0 {
		return nil, &ConfigError{Path: path, Problems: problems}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Library.DBName == "" {
		cfg.Library.DBName = "jellyfin.db"
	}
	for i := range cfg.PathJobs {
		cfg.PathJobs[i].Source = absSource(cfg.PathJobs[i].Source, cfg.Roots.Source)
	}
	for i := range cfg.IDPathJobs {
		cfg.IDPathJobs[i].Source = absSource(cfg.IDPathJobs[i].Source, cfg.Roots.Source)
	}
	for i := range cfg.IDJobs {
		cfg.IDJobs[i].Source = absSource(cfg.IDJobs[i].Source, cfg.Roots.Source)
	}
	return &cfg, nil
}

func absSource(source, root string) string {
	if filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(root, source)
}
