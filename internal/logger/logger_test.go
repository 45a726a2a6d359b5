package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogWritesToConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "", "debug")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer l.Close()

	l.Infof("copied %d files", 3)
	if !strings.Contains(buf.String(), "copied 3 files") {
		t.Errorf("console output missing message: %q", buf.String())
	}
}

func TestLogLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "", "info")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer l.Close()

	l.Debugf("hidden")
	l.Warnf("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message should be filtered at info level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should pass at info level")
	}
}

func TestLogFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "migrator.log")

	var buf bytes.Buffer
	l, err := New(&buf, path, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Errorf("boom")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "boom") {
		t.Errorf("file output missing message: %q", string(data))
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "", "chatty")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer l.Close()

	l.Infof("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("info message should be logged with default level")
	}
}
