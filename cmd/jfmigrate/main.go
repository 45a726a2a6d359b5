package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/jellytools/jfmigrate/internal/migrate"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "reset":
		err = runReset(os.Args[2:])
	case "scan-ids":
		err = runScanIDs(os.Args[2:])
	case "--version":
		printVersion(os.Stdout)
		return
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		var ce *migrate.ConfigError
		if errors.As(err, &ce) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// exitError carries a process exit code alongside the cause.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func printVersion(w io.Writer) {
	v := version
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	fmt.Fprintf(w, "jfmigrate version %s\n", v)
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: jfmigrate <command> [options]

Commands:
  migrate    Run the migration pipeline (resumable)
  reset      Delete the saved migration progress
  scan-ids   Report which tables/columns of a database hold library identifiers

Run 'jfmigrate <command> --help' for command-specific help.
Use 'jfmigrate --version' for version information.
`)
}
