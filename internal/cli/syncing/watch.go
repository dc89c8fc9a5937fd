package syncing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/connectivity"
	"github.com/julianstephens/habitsync/internal/lockfile"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/internal/syncer"
)

// WatchCmd keeps probing the backend and drains the queue every time it
// comes back. While it stays reachable, operations left by a failed drain are
// retried on every probe.
type WatchCmd struct{}

func (c *WatchCmd) Run(ctx *cli.Context) error {
	if ctx.Remote == nil {
		return fmt.Errorf("%w: no remote backend configured", storage.ErrOffline)
	}

	lock, err := lockfile.Acquire(lockfile.Path(ctx.Config.ConfigDir()))
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyRunning) {
			return errors.New("a sync watcher is already running")
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release watcher lock", "error", err)
		}
	}()

	if err := ctx.Connect(); err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initial := ctx.Coordinator.IsOnline()
	w := connectivity.NewWatcher(ctx.Probe, ctx.Config.ProbeInterval, ctx.Config.RequestTimeout, &initial,
		func(cctx context.Context, online bool) {
			if online {
				fmt.Println("✓ Backend reachable, syncing")
			} else {
				fmt.Println("⚠ Backend unreachable, changes will be queued")
			}
			if err := ctx.Coordinator.SetOnline(cctx, online); err != nil && !errors.Is(err, syncer.ErrSyncInProgress) {
				fmt.Fprintf(os.Stderr, "⚠ Sync failed: %v\n", err)
			}
		})
	w.OnSteady(func(cctx context.Context, online bool) {
		if !online {
			return
		}
		result, ran, err := ctx.Coordinator.RetryPending(cctx)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "⚠ Retry failed: %v\n", err)
		case ran:
			fmt.Printf("✓ Synced %d queued change(s)\n", result.Replayed)
		}
	})

	fmt.Printf("Watching backend connectivity every %s (Ctrl+C to stop)\n", ctx.Config.ProbeInterval)
	w.Run(runCtx)
	fmt.Println("Stopped.")
	return nil
}
