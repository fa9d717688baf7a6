package cmd

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matheuskafuri/postview/internal/persist"
	"github.com/matheuskafuri/postview/internal/session"
	"github.com/matheuskafuri/postview/internal/tui"
	"github.com/matheuskafuri/postview/internal/update"
)

const (
	startupTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// runTUI restores the snapshot, wires the session to the store and hands the
// terminal to the browser. In browse mode a cached snapshot is shown as is;
// otherwise a stale one is refetched and the update check runs alongside.
func runTUI(ctx context.Context, browse bool) error {
	e, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	var (
		snap      persist.Snapshot
		latest    *update.Result
		needFresh bool
	)
	loadCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	g, gctx := errgroup.WithContext(loadCtx)
	g.Go(func() error {
		var err error
		snap, err = persist.LoadSnapshot(gctx, e.snaps, e.logger)
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		needFresh = e.snaps.NeedsRefresh(gctx, e.cfg.CacheExpirationDuration())
		return nil
	})
	if !browse && !flagOffline {
		g.Go(func() error {
			latest = update.Check(gctx, version)
			return nil
		})
	}
	err = g.Wait()
	cancel()
	if err != nil {
		return err
	}

	writer := persist.NewWriter(e.snaps, e.logger)
	sess := session.New(e.client, e.cfg.PageSize(),
		session.WithLogger(e.logger),
		session.WithSupersede(),
		session.WithObserver(writer),
	)
	if !snap.Empty() {
		sess.Restore(snap.Posts, snap.Users)
	}

	opts := tui.RunOpts{
		Session:   sess,
		Comments:  e.client,
		PageSize:  e.cfg.PageSize(),
		Debounce:  e.cfg.DebounceDuration(),
		Timeout:   e.cfg.TimeoutDuration(),
		LastSync:  snap.LastSync,
		SkipFetch: len(snap.Posts) > 0 && (browse || !needFresh),
		Offline:   flagOffline,
		Logger:    e.logger,
	}
	if latest != nil {
		opts.UpdateVersion = latest.LatestVersion
	}
	e.logger.Info("starting browser",
		"posts", len(snap.Posts), "users", len(snap.Users), "skip_fetch", opts.SkipFetch, "offline", opts.Offline)

	runErr := tui.Run(opts)

	shutdown, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := sess.Close(shutdown); err != nil {
		e.logger.Warn("session did not settle", "error", err)
	}
	if err := writer.Flush(shutdown); err != nil {
		e.logger.Warn("snapshot writes still pending", "error", err)
	}
	return runErr
}
