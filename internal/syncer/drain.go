package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/julianstephens/habitsync/internal/constants"
	apperrors "github.com/julianstephens/habitsync/internal/errors"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

var errMalformedOperation = errors.New("malformed pending operation")

// SyncResult summarizes one drain of the pending queue.
type SyncResult struct {
	Replayed     int
	DeadLettered int
	// Remaining is the number of live operations still queued.
	Remaining int
	// Complete is true when the queue was emptied and the local cache was
	// refreshed from the gateway.
	Complete bool
}

// SyncOfflineData replays queued operations against the gateway in enqueue
// order. The first failure stops the drain and leaves that operation and all
// later ones queued. Draining is not reentrant: a call made while a drain is
// running returns ErrSyncInProgress.
//
// A failing operation is retried a few times with exponential backoff. Its
// attempts accumulate across drains, and once it reaches MaxAttempts, or the
// gateway rejects it outright, it is dead-lettered so later operations can
// proceed on the next drain.
func (c *Coordinator) SyncOfflineData(ctx context.Context) (SyncResult, error) {
	if !c.IsOnline() {
		return SyncResult{}, storage.ErrOffline
	}
	if !c.draining.CompareAndSwap(false, true) {
		log.Debug("Drain already running, dropping request")
		return SyncResult{}, ErrSyncInProgress
	}
	defer c.draining.Store(false)

	userID, err := c.userID(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	ops, err := c.local.PendingOperations(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	if len(ops) > 0 {
		log.Info("Draining pending operations", "count", len(ops))
	}

	var result SyncResult
	var drainErr error
	for _, op := range ops {
		tries, err := c.replayWithRetry(ctx, userID, op)
		if err == nil {
			if err := c.local.DeleteOperation(ctx, op.ID); err != nil {
				drainErr = fmt.Errorf("failed to remove replayed operation %s: %w", op.ID, err)
				break
			}
			result.Replayed++
			opLog(op).Debug("Replayed operation")
			continue
		}

		drainErr = fmt.Errorf("failed to replay %s operation %s: %w", op, op.ID, err)
		if ctx.Err() != nil {
			break
		}
		dead, bookErr := c.recordFailure(ctx, op, tries, err)
		if bookErr != nil {
			opLog(op).Error("Failed to record replay failure", "error", bookErr)
		}
		if dead {
			result.DeadLettered++
		}
		break
	}

	if result.Remaining, err = c.PendingCount(ctx); err != nil {
		log.Warn("Failed to count pending operations", "error", err)
		result.Remaining = -1
	}
	result.Complete = drainErr == nil && result.Remaining == 0

	if result.Complete {
		c.finishDrain(ctx, userID, result.Replayed)
	} else {
		c.mirrorMemory(ctx)
	}

	log.Info("Drain finished", "replayed", result.Replayed, "dead_lettered", result.DeadLettered,
		"remaining", result.Remaining, "complete", result.Complete)
	return result, drainErr
}

// replayWithRetry replays op, retrying transient failures. It returns the
// number of attempts made.
func (c *Coordinator) replayWithRetry(ctx context.Context, userID string, op models.PendingOperation) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff

	tries := 0
	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		lastErr = c.replay(ctx, userID, op)
		if lastErr != nil && isPermanent(lastErr) {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.opts.TriesPerDrain)),
		backoff.WithNotify(func(err error, next time.Duration) {
			opLog(op).Warn("Replay failed, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil && lastErr != nil {
		err = lastErr
	}
	return tries, err
}

// recordFailure bookkeeps a failed replay and dead-letters the operation when
// it cannot succeed or has used up its attempts.
func (c *Coordinator) recordFailure(ctx context.Context, op models.PendingOperation, tries int, err error) (bool, error) {
	op.Attempts += tries
	op.LastError = err.Error()
	dead := isPermanent(err) || op.Attempts >= c.opts.MaxAttempts
	if dead {
		op.Status = models.OpStatusDead
		opLog(op).Error("Dead-lettered operation", "attempts", op.Attempts, "error", err)
	} else {
		opLog(op).Warn("Replay failed, operation stays queued", "attempts", op.Attempts,
			"failure", apperrors.Classify(err), "error", err)
	}
	return dead, c.local.UpdateOperation(ctx, op)
}

// opLog scopes log entries to one queued operation.
func opLog(op models.PendingOperation) logger.Scope {
	return log.With("op", op.ID, "kind", op.Kind, "collection", op.Collection)
}

// isPermanent reports whether replaying again cannot succeed.
func isPermanent(err error) bool {
	switch {
	case errors.Is(err, errMalformedOperation),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrConflict):
		return true
	}
	return apperrors.Classify(err) == apperrors.KindRemote
}

// finishDrain reloads authoritative state after the queue was emptied and
// replaces the local cache with it.
func (c *Coordinator) finishDrain(ctx context.Context, userID string, replayed int) {
	snap, err := c.loadRemote(ctx, userID)
	if err != nil {
		log.Warn("Queue drained but reload failed, keeping local cache", "error", err)
		c.mirrorMemory(ctx)
	} else {
		if replayed > 0 {
			if b, ok := c.local.(backuper); ok {
				if path, err := b.Backup(ctx); err != nil {
					log.Warn("Failed to back up local store before refresh", "error", err)
				} else {
					log.Debug("Backed up local store", "path", path)
				}
			}
		}
		c.cacheSnapshot(ctx, userID, snap)
	}

	if err := c.local.SetMetadata(ctx, constants.MetadataLastSync, c.now().Format(time.RFC3339Nano)); err != nil {
		log.Warn("Failed to record last sync", "error", err)
	}
}

// mirrorMemory upserts in-memory records into the local store.
func (c *Coordinator) mirrorMemory(ctx context.Context) {
	snap := c.memorySnapshot()
	for _, h := range snap.Habits {
		mirror("habit "+h.ID, c.local.PutHabit(ctx, h))
	}
	for _, cp := range snap.Completions {
		mirror("completion "+cp.ID, c.local.PutCompletion(ctx, cp))
	}
	for _, u := range snap.Achievements {
		mirror("achievement "+u.Key(), c.local.PutAchievement(ctx, u))
	}
}

// replay applies one queued operation to the gateway. Provisional ids are
// sent in their canonical form, so replaying a create twice is harmless.
func (c *Coordinator) replay(ctx context.Context, userID string, op models.PendingOperation) error {
	if c.remote == nil {
		return storage.ErrOffline
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	switch op.Collection {
	case models.CollectionHabits:
		switch op.Kind {
		case models.OpCreate, models.OpUpdate:
			var h models.Habit
			if err := op.Decode(&h); err != nil {
				return fmt.Errorf("%w: %v", errMalformedOperation, err)
			}
			h.ID = models.CanonicalID(h.ID)
			h.UserID = userID
			var err error
			if op.Kind == models.OpCreate {
				_, err = c.remote.CreateHabit(ctx, userID, h)
			} else {
				_, err = c.remote.UpdateHabit(ctx, userID, h)
			}
			return err
		case models.OpDelete:
			var p models.DeletePayload
			if err := op.Decode(&p); err != nil {
				return fmt.Errorf("%w: %v", errMalformedOperation, err)
			}
			return c.remote.DeleteHabit(ctx, userID, models.CanonicalID(p.ID))
		}

	case models.CollectionCompletions:
		switch op.Kind {
		case models.OpCreate:
			var cp models.Completion
			if err := op.Decode(&cp); err != nil {
				return fmt.Errorf("%w: %v", errMalformedOperation, err)
			}
			cp.ID = models.CanonicalID(cp.ID)
			cp.HabitID = models.CanonicalID(cp.HabitID)
			cp.UserID = userID
			_, err := c.remote.CreateCompletion(ctx, userID, cp)
			return err
		case models.OpDelete:
			var p models.DeletePayload
			if err := op.Decode(&p); err != nil {
				return fmt.Errorf("%w: %v", errMalformedOperation, err)
			}
			return c.remote.DeleteCompletion(ctx, userID, models.CanonicalID(p.ID))
		}

	case models.CollectionAchievements:
		if op.Kind == models.OpCreate {
			var u models.AchievementUnlock
			if err := op.Decode(&u); err != nil {
				return fmt.Errorf("%w: %v", errMalformedOperation, err)
			}
			_, err := c.remote.UnlockAchievement(ctx, userID, u.AchievementID, u.UnlockedAt)
			return err
		}
	}
	return fmt.Errorf("%w: unsupported %s", errMalformedOperation, op)
}
