package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"medcal/internal/config"
	"medcal/internal/export"
	appLog "medcal/internal/log"
	"medcal/internal/medstore"
	"medcal/internal/storage"
)

const version = "0.1.0"

// globalFlags holds the flags accepted before the subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

// app carries what every subcommand needs.
type app struct {
	cfg      *config.Config
	exporter *export.Exporter
	stdout   io.Writer
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			appLog.Error("medcal failed", err)
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		_ = appLog.Close()
		os.Exit(1)
	}
	_ = appLog.Close()
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("medcal", flag.ContinueOnError)
	var gf globalFlags
	fs.StringVar(&gf.configPath, "config", "medcal.yaml", "Path to config file")
	fs.StringVar(&gf.logLevel, "log-level", "", "Log level (overrides config if set)")
	fs.Usage = func() { usage(fs.Output(), fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		usage(fs.Output(), fs)
		return flag.ErrHelp
	}

	a, err := newApp(gf, stdout)
	if err != nil {
		return err
	}

	ctx, stop := withSignals(ctx)
	defer stop()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "add":
		return a.cmdAdd(rest)
	case "remove":
		return a.cmdRemove(rest)
	case "list":
		return a.cmdList(rest)
	case "preview":
		return a.cmdPreview(rest)
	case "export":
		return a.cmdExport(ctx, rest)
	case "inspect":
		return a.cmdInspect(ctx, rest)
	case "watch":
		return a.cmdWatch(ctx, rest)
	case "serve":
		return a.cmdServe(ctx, rest)
	case "clear-cache":
		return a.cmdClearCache(rest)
	case "version":
		fmt.Fprintln(stdout, "medcal", version)
		return nil
	default:
		usage(fs.Output(), fs)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newApp(gf globalFlags, stdout io.Writer) (*app, error) {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", gf.configPath, err)
	}

	// CLI --log-level overrides config file level if provided.
	if gf.logLevel != "" {
		cfg.Log.Level = gf.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", gf.configPath, err)
	}

	level, err := appLog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if err := appLog.Configure(appLog.Options{
		Level:      level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		JSON:       cfg.Log.JSON,
	}); err != nil {
		return nil, err
	}

	appLog.Debug("effective config",
		"config_path", gf.configPath,
		"timezone", cfg.Location().String(),
		"medications_path", cfg.MedicationsPath,
		"cache_path", cfg.CachePath,
		"output_dir", cfg.OutputDir,
		"refresh", cfg.RefreshCron,
		"store_kind", cfg.Store.Kind,
		"bucket", cfg.Store.Bucket,
	)

	store, err := storage.New(cfg.Store)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		exporter: export.NewExporter(store, export.NewFileCache(cfg.CachePath), cfg.Store),
		stdout:   stdout,
	}, nil
}

func (a *app) loadList() (*medstore.List, error) {
	return medstore.Load(a.cfg.MedicationsPath)
}

// withSignals returns a context canceled on SIGINT/SIGTERM or by stop.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `Usage: medcal [global flags] <command> [flags]

Commands:
  add          add a medication (-name -interval -duration -start)
  remove       remove a medication by name
  list         show the medication list
  preview      show the generated dose schedule
  export       publish the calendar (or -local to write the .ics file)
  inspect      read back an .ics file or URL
  watch        re-publish on the configured cron schedule
  serve        serve the dir store over HTTP for webcal subscriptions
  clear-cache  forget the last published calendar
  version      print the version

Global flags:
`)
	fs.PrintDefaults()
}
