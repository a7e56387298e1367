package app

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/dispatch"
	"github.com/specialistvlad/chatgraph/internal/workerpool"
	"golang.org/x/sync/errgroup"
)

// drainTimeout bounds the wait for background tasks on shutdown.
const drainTimeout = 10 * time.Second

// Run serves events until the transport ends or ctx is cancelled, then waits
// for background tasks to finish.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	store, closeStore, err := openStore(ctx, a.config.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	pool := workerpool.New(ctx, a.workers())
	defer pool.Close()

	d := dispatch.New(ctx, a.table,
		dispatch.WithPool(pool),
		dispatch.WithInterceptors(a.interceptors),
		dispatch.WithMaxRedirects(a.bot.Dispatcher.MaxRedirects),
	)
	defer d.Close()

	source, err := a.newSource(store)
	if err != nil {
		return err
	}
	handle, closeHandler, err := a.handler(d, store)
	if err != nil {
		return err
	}
	defer closeHandler()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	if port := a.config.HealthcheckPort; port > 0 {
		g.Go(func() error { return a.serveHealth(gctx, port) })
	}
	g.Go(func() error {
		defer cancel()
		a.logger.Info("🚀 Serving events.", "transport", a.config.Transport, "routes", a.table.Len(), "workers", pool.Size())
		if err := source.Run(gctx, handle); err != nil {
			return fmt.Errorf("%s transport: %w", a.config.Transport, err)
		}
		return nil
	})
	runErr := g.Wait()

	drainCtx, drainCancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer drainCancel()
	if err := d.Wait(drainCtx); err != nil {
		a.logger.Warn("Background tasks still running at shutdown.", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("🏁 Stopped serving events.")
	return nil
}
