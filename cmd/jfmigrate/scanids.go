package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jellytools/jfmigrate/internal/ids"
	"github.com/jellytools/jfmigrate/internal/logger"
)

func runScanIDs(args []string) error {
	fs := flag.NewFlagSet("scan-ids", flag.ContinueOnError)
	library := fs.String("library", "", "path to the library database the identifiers come from")
	dbPath := fs.String("db", "", "path to the database to scan")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *library == "" {
		return errors.New("--library is required")
	}
	if *dbPath == "" {
		return errors.New("--db is required")
	}

	log, err := logger.New(os.Stderr, "", "info")
	if err != nil {
		return err
	}
	defer log.Close()

	lib, err := ids.LoadLibraryIDs(*library)
	if err != nil {
		return err
	}
	log.Infof("loaded %d library identifiers", lib.Count())

	results, err := ids.ScanForIDs(lib, *dbPath, log)
	if err != nil {
		return err
	}
	fmt.Print(ids.FormatScanResults(results))
	return nil
}
