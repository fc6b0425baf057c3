package main

import (
	"context"
	"flag"
	"fmt"

	"medcal/internal/config"
	"medcal/internal/export"
	"medcal/internal/web"
)

func (a *app) cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "", "HTTP listen address (overrides config if set)")
	watch := fs.Bool("watch", false, "Also re-publish on the refresh schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.cfg.Store.Kind != config.StoreKindDir {
		return fmt.Errorf("serve needs the %q store, config uses %q", config.StoreKindDir, a.cfg.Store.Kind)
	}
	if *listen != "" {
		a.cfg.Listen = *listen
	}

	srv := web.NewServer(a.cfg, export.NewFileCache(a.cfg.CachePath))
	if !*watch {
		return srv.ListenAndServe(ctx)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.cmdWatch(ctx, nil) }()

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	return <-errCh
}
