package syncing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

type SyncCmd struct {
	Now     SyncNowCmd     `cmd:"" help:"Replay queued offline changes now." default:"1"`
	Status  SyncStatusCmd  `cmd:"" help:"Show connectivity and queue status."`
	Queue   SyncQueueCmd   `cmd:"" help:"List queued and dead-lettered operations."`
	Requeue SyncRequeueCmd `cmd:"" help:"Return a dead-lettered operation to the queue."`
	Discard SyncDiscardCmd `cmd:"" help:"Drop a dead-lettered operation."`
}

type SyncNowCmd struct{}

func (c *SyncNowCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}
	if !ctx.Coordinator.IsOnline() {
		return storage.ErrOffline
	}

	// Connect already drained the queue once; this picks up anything left.
	result, err := ctx.Coordinator.SyncOfflineData(ctx.Context())
	if result.Replayed > 0 {
		fmt.Printf("✓ Replayed %d operation(s)\n", result.Replayed)
	}
	if result.DeadLettered > 0 {
		fmt.Printf("❌ Dead-lettered %d operation(s), see 'sync queue'\n", result.DeadLettered)
	}
	if err != nil {
		return err
	}
	if result.Complete {
		fmt.Println("✓ All changes are synced")
	} else if result.Remaining > 0 {
		fmt.Printf("⚠ %d operation(s) still queued\n", result.Remaining)
	}
	return nil
}

type SyncStatusCmd struct{}

func (c *SyncStatusCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}
	bg := ctx.Context()

	switch {
	case ctx.Remote == nil:
		fmt.Println("Backend:  not configured (local only)")
	case ctx.Coordinator.IsOnline():
		fmt.Println("Backend:  online")
	default:
		fmt.Println("Backend:  offline")
	}

	pending, err := ctx.Store.PendingOperations(bg)
	if err != nil {
		return err
	}
	dead, err := ctx.Store.DeadOperations(bg)
	if err != nil {
		return err
	}
	fmt.Printf("Queued:   %d\n", len(pending))
	fmt.Printf("Dead:     %d\n", len(dead))

	last, ok, err := ctx.Coordinator.LastSync(bg)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("Synced:   %s\n", last.In(ctx.Config.Location()).Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Synced:   never")
	}
	return nil
}

type SyncQueueCmd struct{}

func (c *SyncQueueCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Init(); err != nil {
		return err
	}
	bg := ctx.Context()

	pending, err := ctx.Store.PendingOperations(bg)
	if err != nil {
		return err
	}
	dead, err := ctx.Store.DeadOperations(bg)
	if err != nil {
		return err
	}
	if len(pending) == 0 && len(dead) == 0 {
		fmt.Println("No queued operations.")
		return nil
	}

	loc := ctx.Config.Location()
	if len(pending) > 0 {
		fmt.Printf("Queued (%d):\n", len(pending))
		for _, op := range pending {
			printOperation(op, loc)
		}
	}
	if len(dead) > 0 {
		if len(pending) > 0 {
			fmt.Println()
		}
		fmt.Printf("Dead-lettered (%d):\n", len(dead))
		for _, op := range dead {
			printOperation(op, loc)
		}
		fmt.Println("\nUse 'sync requeue <id>' to retry or 'sync discard <id>' to drop.")
	}
	return nil
}

func printOperation(op models.PendingOperation, loc *time.Location) {
	fmt.Printf("  %s  %-18s  %s  attempts=%d\n", op.ID[:min(8, len(op.ID))], op.String(),
		op.EnqueuedAt.In(loc).Format("2006-01-02 15:04:05"), op.Attempts)
	if op.LastError != "" {
		fmt.Printf("            last error: %s\n", op.LastError)
	}
}

type SyncRequeueCmd struct {
	ID string `arg:"" help:"Operation id or unique prefix."`
}

func (c *SyncRequeueCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Init(); err != nil {
		return err
	}
	op, err := findDead(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := ctx.Store.RequeueOperation(ctx.Context(), op.ID); err != nil {
		return err
	}
	fmt.Printf("✓ Requeued %s %s\n", op.String(), op.ID)
	fmt.Println("  It will be replayed on the next sync.")
	return nil
}

type SyncDiscardCmd struct {
	ID string `arg:"" help:"Operation id or unique prefix."`
}

func (c *SyncDiscardCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Init(); err != nil {
		return err
	}
	op, err := findDead(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := ctx.Store.DeleteOperation(ctx.Context(), op.ID); err != nil {
		return err
	}
	fmt.Printf("✓ Discarded %s %s\n", op.String(), op.ID)
	return nil
}

// findDead resolves a dead-lettered operation by id or id prefix.
func findDead(ctx *cli.Context, ref string) (models.PendingOperation, error) {
	dead, err := ctx.Store.DeadOperations(ctx.Context())
	if err != nil {
		return models.PendingOperation{}, err
	}
	var matches []models.PendingOperation
	for _, op := range dead {
		if op.ID == ref {
			return op, nil
		}
		if strings.HasPrefix(op.ID, ref) {
			matches = append(matches, op)
		}
	}
	switch len(matches) {
	case 0:
		return models.PendingOperation{}, fmt.Errorf("no dead-lettered operation matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return models.PendingOperation{}, errors.New("operation id prefix is ambiguous")
	}
}
