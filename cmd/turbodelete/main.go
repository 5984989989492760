package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"turbodelete/internal/cleanup"
	"turbodelete/internal/config"
	"turbodelete/internal/database"
	"turbodelete/internal/engine"
	"turbodelete/internal/exitcodes"
	"turbodelete/internal/logging"
	"turbodelete/internal/metrics"
	"turbodelete/internal/safety"
	"turbodelete/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("turbodelete", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)

	configPath := flags.StringP("config", "c", "", "Path to configuration file (YAML, or TOML by extension)")
	workers := flags.IntP("workers", "w", 0, "Number of parallel workers (default: one per CPU)")
	dryRun := flags.BoolP("dry-run", "n", false, "Scan and report without deleting anything")
	verbose := flags.BoolP("verbose", "v", false, "Mirror the log to stderr, including debug lines")
	noProgress := flags.Bool("no-progress", false, "Do not draw the progress bar")
	noFollow := flags.Bool("no-follow-symlinks", false, "Never follow symlinks while scanning")
	historyDB := flags.String("history-db", "", "Record each target in this SQLite database")
	noHistory := flags.Bool("no-history", false, "Do not record deletion history")
	textfile := flags.String("metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	pushgateway := flags.String("pushgateway", "", "Push Prometheus metrics to this Pushgateway URL")
	showVersion := flags.BoolP("version", "V", false, "Print version information")
	help := flags.BoolP("help", "h", false, "Show this help message")

	if err := flags.Parse(args); err != nil {
		ui.Usage(stderr, err.Error(), "turbodelete", flags.FlagUsages())
		return exitcodes.InvalidUsage
	}
	if *showVersion {
		fmt.Fprintf(stdout, "turbodelete version %s\n", version)
		return exitcodes.Success
	}
	if *help {
		fmt.Fprintf(stdout, "Usage: turbodelete [options] PATH...\n\nOptions:\n%s", flags.FlagUsages())
		return exitcodes.Success
	}
	if flags.NArg() == 0 {
		ui.Usage(stderr, ui.NoPathsMessage, "turbodelete", flags.FlagUsages())
		return exitcodes.InvalidUsage
	}

	// Load configuration; only an explicit path has to exist
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadOrDefault(config.DefaultPath())
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: Failed to load config: %v\n", err)
		return exitcodes.InvalidConfig
	}

	// Flags override the config file
	if flags.Changed("workers") {
		if *workers < 0 {
			fmt.Fprintln(stderr, "ERROR: --workers cannot be negative")
			return exitcodes.InvalidUsage
		}
		if *workers > 0 {
			cfg.Workers = *workers
		}
	}
	if *noFollow {
		follow := false
		cfg.FollowSymlinks = &follow
	}
	if *historyDB != "" {
		cfg.History.Enabled = true
		cfg.History.DatabasePath = *historyDB
	}
	if *noHistory {
		cfg.History.Enabled = false
	}
	if *textfile != "" {
		cfg.Metrics.TextfilePath = *textfile
	}
	if *pushgateway != "" {
		cfg.Metrics.PushgatewayURL = *pushgateway
	}

	stdLogger := logging.NewWithConfig(cfg, *verbose)
	logger := logging.Wrap(stdLogger, *verbose)
	logger.Info("turbodelete starting", "version", version, "workers", cfg.Workers, "dry_run", *dryRun)

	metrics.Init()

	var history cleanup.History
	if cfg.History.Enabled {
		logger.Debug("Opening history database", "path", cfg.History.DatabasePath)
		db, err := database.NewHistoryDB(cfg.History.DatabasePath)
		if err != nil {
			logger.Error("Failed to open history database", "path", cfg.History.DatabasePath, "error", err)
			fmt.Fprintf(stderr, "ERROR: Failed to open history database %s: %v\n", cfg.History.DatabasePath, err)
			return exitcodes.RuntimeError
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close history database", "error", err)
			}
		}()
		history = db
	}

	eng := engine.New(engine.Options{
		Workers:        cfg.Workers,
		FollowSymlinks: cfg.Follow(),
		DryRun:         *dryRun,
		Logger:         logger,
		Recorder:       metrics.EngineRecorder{},
	})

	console := ui.NewConsole(stdout, stderr, !*noProgress)
	cleaner := cleanup.NewCleaner(cleanup.Options{
		Deleter:   eng,
		Validator: safety.NewValidator(cfg.ProtectedPaths),
		History:   history,
		Reporter:  console,
		Logger:    logger,
		DryRun:    *dryRun,
	})

	// SIGINT stops further targets; the running one finishes
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum := cleaner.Run(ctx, flags.Args())
	console.Summary(sum)

	exportMetrics(cfg, logger, stderr)

	if sum.Errors > 0 || sum.Interrupted {
		return exitcodes.TargetFailed
	}
	return exitcodes.Success
}

// exportMetrics writes and pushes metrics when configured. Failures are
// reported but never change the exit code.
func exportMetrics(cfg *config.Config, logger logging.Logger, stderr io.Writer) {
	if cfg.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Error("Failed to write metrics textfile", "path", cfg.Metrics.TextfilePath, "error", err)
			fmt.Fprintf(stderr, "WARNING: Failed to write metrics to %s: %v\n", cfg.Metrics.TextfilePath, err)
		}
	}
	if cfg.Metrics.PushgatewayURL != "" {
		if err := metrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Error("Failed to push metrics", "url", cfg.Metrics.PushgatewayURL, "error", err)
			fmt.Fprintf(stderr, "WARNING: Failed to push metrics to %s: %v\n", cfg.Metrics.PushgatewayURL, err)
		}
	}
}
