package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jellytools/jfmigrate/internal/logger"
	"github.com/jellytools/jfmigrate/internal/migrate"
)

const defaultStateFile = "migration_state.json"

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	stateFile := fs.String("state-file", defaultStateFile, "path to the resume state file")
	reset := fs.Bool("reset", false, "discard saved progress and start from the beginning")
	skipDiskCheck := fs.Bool("skip-disk-check", false, "skip the free space estimation")
	strictSpace := fs.Bool("strict-space", false, "fail instead of prompting when disk space is insufficient")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("--config is required")
	}

	cfg, err := migrate.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(os.Stderr, cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Close()
	log.Infof("starting media server migration")

	if *reset {
		if err := migrate.ResetState(*stateFile, log); err != nil {
			return err
		}
	}

	if _, err := os.Stat(cfg.Roots.Source); err != nil {
		return &exitError{code: 3, err: fmt.Errorf("source root not found: %s", cfg.Roots.Source)}
	}

	if *skipDiskCheck {
		log.Infof("skipping disk space check as requested")
	} else {
		report, err := migrate.CheckDiskSpace(cfg.Roots.Source, cfg.Roots.Target, *strictSpace, log)
		var ise *migrate.InsufficientSpaceError
		if errors.As(err, &ise) {
			return &exitError{code: 4, err: err}
		}
		if err != nil {
			return err
		}
		if !report.Sufficient() && !confirm("Insufficient disk space. Continue anyway? [y/N] ") {
			return &exitError{code: 4, err: errors.New("aborted: insufficient disk space")}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &migrate.Pipeline{Config: cfg, StateFile: *stateFile, Log: log}
	return p.Run(ctx)
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
