package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"medcal/internal/export"
	"medcal/internal/ics"
	appLog "medcal/internal/log"
	"medcal/internal/model"
	"medcal/internal/schedule"
)

// startLayout is the accepted -start format, read in the configured zone.
const startLayout = "2006-01-02T15:04"

func (a *app) cmdAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "Medication name (letters, digits and spaces)")
	interval := fs.Int("interval", 0, "Hours between doses (1-24, 48 or 72)")
	duration := fs.Int("duration", 0, "Treatment length in days (1-31)")
	start := fs.String("start", "", "First dose, "+startLayout+" (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loc := a.cfg.Location()
	startTime := time.Now().In(loc).Truncate(time.Minute)
	if *start != "" {
		t, err := time.ParseInLocation(startLayout, *start, loc)
		if err != nil {
			return fmt.Errorf("invalid -start %q: want %s", *start, startLayout)
		}
		startTime = t
	}

	list, err := a.loadList()
	if err != nil {
		return err
	}
	if len(list.Items) >= a.cfg.MaxMedications {
		return fmt.Errorf("the list already holds %d medications", a.cfg.MaxMedications)
	}

	m := model.Medication{
		Name:      *name,
		Interval:  *interval,
		Duration:  *duration,
		StartTime: startTime,
	}
	if err := list.Add(m); err != nil {
		return err
	}
	if err := list.Save(a.cfg.MedicationsPath); err != nil {
		return err
	}
	if err := a.exporter.Invalidate(); err != nil {
		appLog.Error("export cache clear failed", err)
	}

	appLog.Info("medication added", "name", strings.TrimSpace(*name), "interval", *interval, "duration", *duration)
	fmt.Fprintf(a.stdout, "Added %s (every %dh for %d days from %s)\n",
		strings.TrimSpace(*name), *interval, *duration, startTime.Format(startLayout))
	return nil
}

func (a *app) cmdRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	name := fs.String("name", "", "Medication name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" && fs.NArg() > 0 {
		*name = strings.Join(fs.Args(), " ")
	}
	if *name == "" {
		return errors.New("remove: -name is required")
	}

	list, err := a.loadList()
	if err != nil {
		return err
	}
	if err := list.Remove(*name); err != nil {
		return err
	}
	if err := list.Save(a.cfg.MedicationsPath); err != nil {
		return err
	}
	if err := a.exporter.Invalidate(); err != nil {
		appLog.Error("export cache clear failed", err)
	}

	appLog.Info("medication removed", "name", *name)
	fmt.Fprintf(a.stdout, "Removed %s\n", *name)
	return nil
}

func (a *app) cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := a.loadList()
	if err != nil {
		return err
	}
	meds := list.InLocation(a.cfg.Location())
	if len(meds) == 0 {
		fmt.Fprintln(a.stdout, "No medications.")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINTERVAL\tDURATION\tSTART")
	for _, m := range meds {
		fmt.Fprintf(tw, "%s\t%dh\t%dd\t%s\n", m.Name, m.Interval, m.Duration, m.StartTime.Format(startLayout))
	}
	return tw.Flush()
}

func (a *app) cmdPreview(args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	showEvents := fs.Bool("events", false, "List every dose, not just the per-medication summary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := a.loadList()
	if err != nil {
		return err
	}
	events, err := schedule.GenerateEvents(list.InLocation(a.cfg.Location()))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MEDICATION\tDOSES\tFIRST\tLAST\tFINAL DOSE")
	for _, s := range schedule.Summarize(events) {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%t\n",
			s.Medication, s.Doses, s.First.Format(startLayout), s.Last.Format(startLayout), s.FinalDose)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if *showEvents {
		fmt.Fprintln(a.stdout)
		for _, ev := range events {
			fmt.Fprintf(a.stdout, "%s-%s  %s\n", ev.Start.Format(startLayout), ev.End.Format("15:04"), ev.Title)
		}
	}
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	local := fs.Bool("local", false, "Write the .ics file instead of publishing it")
	out := fs.String("out", "", "Output directory for -local (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := a.loadList()
	if err != nil {
		return err
	}
	meds := list.InLocation(a.cfg.Location())

	if *local {
		dir := a.cfg.OutputDir
		if *out != "" {
			dir = *out
		}
		art, err := a.exporter.ExportLocal(meds)
		if err != nil {
			return err
		}
		dst, err := export.WriteArtifact(dir, art)
		if err != nil {
			return err
		}
		appLog.Info("calendar written", "path", dst, "events", art.EventCount)
		fmt.Fprintf(a.stdout, "Wrote %s (%d events)\n", dst, art.EventCount)
		return nil
	}

	res, err := a.exporter.ExportToCalendar(ctx, meds)
	if err != nil {
		return err
	}
	if res.Cached {
		fmt.Fprintf(a.stdout, "%s (unchanged)\n", res.URL)
		return nil
	}
	fmt.Fprintf(a.stdout, "%s (%d events)\n", res.URL, res.EventCount)
	return nil
}

func (a *app) cmdInspect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("inspect: expected one .ics file or URL")
	}
	src := fs.Arg(0)

	var body []byte
	var err error
	if isRemote(src) {
		body, err = ics.NewFetcher(nil).Fetch(ctx, src)
	} else {
		body, err = os.ReadFile(src)
	}
	if err != nil {
		return err
	}

	events, err := ics.Parse(body)
	if err != nil {
		return err
	}

	loc := a.cfg.Location()
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tSUMMARY\tALARMS")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
			ev.Start.In(loc).Format(startLayout), ev.End.In(loc).Format(startLayout), ev.Summary, len(ev.Alarms))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%d events\n", len(events))
	return nil
}

func (a *app) cmdClearCache(args []string) error {
	fs := flag.NewFlagSet("clear-cache", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.exporter.Invalidate(); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Export cache cleared.")
	return nil
}

func isRemote(src string) bool {
	s := strings.ToLower(src)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "webcal://")
}
