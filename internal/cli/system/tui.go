package system

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/connectivity"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/syncer"
	"github.com/julianstephens/habitsync/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	// Perform automatic backup on TUI startup (after successful load)
	ctx.PerformAutomaticBackup()

	opts := tui.Options{Location: ctx.Config.Location()}
	if ctx.Remote != nil {
		initial := ctx.Coordinator.IsOnline()
		opts.Watcher = connectivity.NewWatcher(ctx.Probe, ctx.Config.ProbeInterval, ctx.Config.RequestTimeout, &initial,
			func(cctx context.Context, online bool) {
				if err := ctx.Coordinator.SetOnline(cctx, online); err != nil && !errors.Is(err, syncer.ErrSyncInProgress) {
					logger.Warn("Sync after reconnect failed", "error", err)
				}
			})
		opts.ProbeInterval = ctx.Config.ProbeInterval
	}

	p := tea.NewProgram(tui.NewModel(ctx.Context(), ctx.Coordinator, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
