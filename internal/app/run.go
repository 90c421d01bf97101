package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/snapshot"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Run executes the App in its configured mode. In serve mode it blocks
// until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if a.mode == ModeCheck {
		return a.check(ctx)
	}
	return a.serve(ctx, nil)
}

func (a *App) check(ctx context.Context) error {
	snaps, err := a.bootstrap(ctx)
	if err != nil {
		return err
	}
	if snaps != nil {
		if err := snaps.Close(); err != nil {
			return err
		}
	}

	nodes, rels := a.store.Counts(ctx)
	fmt.Fprintf(a.outW, "Configuration OK: %d nodes, %d relationships.\n", nodes, rels)
	return nil
}

// serve runs the HTTP API. ready, when set, receives the bound address.
func (a *App) serve(ctx context.Context, ready func(net.Addr)) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.serve started.")

	snaps, err := a.bootstrap(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Listen(a.config.Server.Listen, ready); err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	serveErr := g.Wait()

	if snaps != nil {
		if err := a.saveSnapshot(context.WithoutCancel(ctx), snaps); err != nil && serveErr == nil {
			serveErr = err
		}
	}

	logger.Debug("App.serve finished.")
	return serveErr
}

func (a *App) saveSnapshot(ctx context.Context, snaps *snapshot.Store) error {
	defer func() {
		if err := snaps.Close(); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to close snapshot database.", "error", err)
		}
	}()
	if err := snaps.Save(ctx, snapshot.Capture(ctx, a.store, a.clock())); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to save snapshot.", "error", err)
		return err
	}
	return nil
}
