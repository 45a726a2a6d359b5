package main

import (
	"flag"
	"os"

	"github.com/jellytools/jfmigrate/internal/logger"
	"github.com/jellytools/jfmigrate/internal/migrate"
)

func runReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	stateFile := fs.String("state-file", defaultStateFile, "path to the resume state file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, err := logger.New(os.Stderr, "", "info")
	if err != nil {
		return err
	}
	defer log.Close()
	return migrate.ResetState(*stateFile, log)
}
