package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "medcal/internal/log"
)

// cronLogger adapts appLog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

func (a *app) cmdWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	spec := fs.String("refresh", "", "Cron schedule (overrides config refresh)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *spec == "" {
		*spec = a.cfg.RefreshCron
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(a.cfg.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(*spec, func() { a.publish(ctx) }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", *spec, err)
	}

	appLog.Info("watch started", "refresh", *spec, "timezone", a.cfg.Location().String())
	a.publish(ctx)

	c.Start()
	<-ctx.Done()

	// Wait for a running export to finish.
	<-c.Stop().Done()
	appLog.Info("watch stopped")
	return nil
}

// publish runs one export cycle. Failures are logged and retried on the
// next tick.
func (a *app) publish(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	list, err := a.loadList()
	if err != nil {
		appLog.Error("load medication list failed", err, "path", a.cfg.MedicationsPath)
		return
	}
	if len(list.Items) == 0 {
		appLog.Info("medication list is empty, nothing to publish")
		return
	}

	res, err := a.exporter.ExportToCalendar(ctx, list.InLocation(a.cfg.Location()))
	if err != nil {
		appLog.Error("publish failed", err)
		return
	}
	if !res.Cached {
		fmt.Fprintf(a.stdout, "%s (%d events)\n", res.URL, res.EventCount)
	}
}
