// Package logger provides the logging capability passed to every component.
// There is no package-level logger; callers construct one and inject it.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the minimal logging surface the migration components need.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Log writes human-readable lines to a console writer and, when a path is
// configured, JSON lines to a log file.
type Log struct {
	z    zerolog.Logger
	file *os.File
}

// New builds a Log. console is typically os.Stderr; an empty path disables
// the file sink. Unknown level strings fall back to "info".
func New(console io.Writer, path, level string) (*Log, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: "2006-01-02 15:04:05"}}

	var file *os.File
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
		}
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, zerolog.SyncWriter(file))
	}

	z := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return &Log{z: z, file: file}, nil
}

// Close releases the log file, if one was opened.
func (l *Log) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Log) Debugf(format string, args ...any) { l.z.Debug().Msgf(format, args...) }
func (l *Log) Infof(format string, args ...any)  { l.z.Info().Msgf(format, args...) }
func (l *Log) Warnf(format string, args ...any)  { l.z.Warn().Msgf(format, args...) }
func (l *Log) Errorf(format string, args ...any) { l.z.Error().Msgf(format, args...) }

// Nop returns a Logger that discards everything. Used in tests and for jobs
// that request suppressed logging.
func Nop() Logger { return nop{} }

type nop struct{}

func (nop) Debugf(string, ...any) {}
func (nop) Infof(string, ...any)  {}
func (nop) Warnf(string, ...any)  {}
func (nop) Errorf(string, ...any) {}
