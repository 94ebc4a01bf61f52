package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
)

// Run builds a runtime, runs fn until it returns or the process is
// interrupted, and tears everything down. The metrics endpoint, when
// configured, serves for the duration of fn.
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, fn func(ctx context.Context, rt *Runtime) error) error {
	rt, err := New(settings, build)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	fnCtx, fnDone := context.WithCancel(gctx)
	defer fnDone()

	g.Go(func() error {
		return rt.ServeMetrics(fnCtx)
	})
	g.Go(func() error {
		defer fnDone()
		return fn(fnCtx, rt)
	})

	return g.Wait()
}
