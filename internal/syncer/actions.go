package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitsync/internal/achievements"
	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/internal/validation"
)

// Toggle is the outcome of ToggleCompletion: either a completion was added
// or the day's completions of a boolean habit were removed.
type Toggle struct {
	Completion *models.Completion
	Removed    []models.Completion
}

// deferred reports whether a mutation must go through the queue. It must
// when offline, when earlier operations are still queued, or when it touches
// a record the gateway may not have yet.
func (c *Coordinator) deferred(ctx context.Context, ids ...string) bool {
	if !c.IsOnline() {
		return true
	}
	for _, id := range ids {
		if models.IsProvisional(id) {
			return true
		}
	}
	pending, err := c.PendingCount(ctx)
	if err != nil {
		log.Warn("Failed to read pending operations", "error", err)
		return false
	}
	return pending > 0
}

// enqueue records a deferred mutation in the pending queue.
func (c *Coordinator) enqueue(ctx context.Context, kind models.OpKind, collection models.Collection, payload any) error {
	op, err := models.NewPendingOperation(kind, collection, payload)
	if err != nil {
		return err
	}
	op.EnqueuedAt = c.now()
	if err := c.local.EnqueueOperation(ctx, op); err != nil {
		return fmt.Errorf("failed to queue %s: %w", op, err)
	}
	opLog(op).Info("Queued operation")
	return nil
}

// drainIfOnline replays a mutation queued while online right away, behind the
// operations queued before it. A failed drain is reported as ErrQueued.
func (c *Coordinator) drainIfOnline(ctx context.Context) error {
	if !c.IsOnline() {
		return nil
	}
	if _, err := c.SyncOfflineData(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
		log.Warn("Queued operation not replayed yet", "error", err)
		return fmt.Errorf("%w: %v", ErrQueued, err)
	}
	return nil
}

// mirror logs a failed local write that follows a successful gateway call.
func mirror(what string, err error) {
	if err != nil {
		log.Warn("Failed to mirror into local store", "record", what, "error", err)
	}
}

// AddHabit creates a habit. Missing id, type and timestamps are filled in.
func (c *Coordinator) AddHabit(ctx context.Context, h models.Habit) (models.Habit, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	h.Name = strings.TrimSpace(h.Name)
	if h.Type == "" {
		h.Type = models.CompletionBoolean
	}
	if err := validation.ValidateHabit(h); err != nil {
		return models.Habit{}, err
	}
	now := c.now()
	h.UserID = userID
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now

	if c.deferred(ctx) {
		if h.ID == "" {
			h.ID = models.NewProvisionalID()
		}
		if err := c.local.PutHabit(ctx, h); err != nil {
			return models.Habit{}, err
		}
		if err := c.enqueue(ctx, models.OpCreate, models.CollectionHabits, h); err != nil {
			_ = c.local.DeleteHabit(ctx, h.ID)
			return models.Habit{}, err
		}
		c.rememberHabit(h)
		return h, c.drainIfOnline(ctx)
	}

	if h.ID == "" {
		h.ID = models.NewID()
	}
	var created models.Habit
	if err := c.call(ctx, func(ctx context.Context) error {
		var err error
		created, err = c.remote.CreateHabit(ctx, userID, h)
		return err
	}); err != nil {
		return models.Habit{}, err
	}
	mirror("habit "+created.ID, c.local.PutHabit(ctx, created))
	c.rememberHabit(created)
	return created, nil
}

// UpdateHabit replaces the editable fields of an existing habit.
func (c *Coordinator) UpdateHabit(ctx context.Context, h models.Habit) (models.Habit, error) {
	existing, err := c.habit(ctx, h.ID)
	if err != nil {
		return models.Habit{}, err
	}
	h.Name = strings.TrimSpace(h.Name)
	if err := validation.ValidateHabit(h); err != nil {
		return models.Habit{}, err
	}
	h.UserID = existing.UserID
	h.CreatedAt = existing.CreatedAt
	h.UpdatedAt = c.now()

	if c.deferred(ctx, h.ID) {
		if err := c.local.PutHabit(ctx, h); err != nil {
			return models.Habit{}, err
		}
		if err := c.enqueue(ctx, models.OpUpdate, models.CollectionHabits, h); err != nil {
			mirror("habit "+h.ID, c.local.PutHabit(ctx, existing))
			return models.Habit{}, err
		}
		c.rememberHabit(h)
		return h, c.drainIfOnline(ctx)
	}

	var updated models.Habit
	if err := c.call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = c.remote.UpdateHabit(ctx, h.UserID, h)
		return err
	}); err != nil {
		return models.Habit{}, err
	}
	mirror("habit "+updated.ID, c.local.PutHabit(ctx, updated))
	c.rememberHabit(updated)
	return updated, nil
}

// DeleteHabit removes a habit and its completions.
func (c *Coordinator) DeleteHabit(ctx context.Context, id string) error {
	h, err := c.habit(ctx, id)
	if err != nil {
		return err
	}

	if c.deferred(ctx, id) {
		if err := c.enqueue(ctx, models.OpDelete, models.CollectionHabits, models.DeletePayload{ID: id, UserID: h.UserID}); err != nil {
			return err
		}
		if err := c.local.DeleteHabit(ctx, id); err != nil {
			return err
		}
		c.forgetHabit(id)
		return c.drainIfOnline(ctx)
	}

	if err := c.call(ctx, func(ctx context.Context) error {
		return c.remote.DeleteHabit(ctx, h.UserID, id)
	}); err != nil {
		return err
	}
	mirror("habit "+id, c.local.DeleteHabit(ctx, id))
	c.forgetHabit(id)
	return nil
}

// ToggleCompletion records progress on habitID for date (YYYY-MM-DD). For a
// boolean habit it removes the day's completion if one exists and adds one
// otherwise. For a numeric habit it adds a completion of value, 1 when nil.
func (c *Coordinator) ToggleCompletion(ctx context.Context, habitID, date string, value *float64) (Toggle, error) {
	if err := validation.ValidateDate(date); err != nil {
		return Toggle{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	h, err := c.habit(ctx, habitID)
	if err != nil {
		return Toggle{}, err
	}

	if h.IsNumeric() {
		amount := constants.DefaultNumericIncrement
		if value != nil {
			amount = *value
		}
		if amount <= 0 {
			return Toggle{}, fmt.Errorf("%w: logged amount must be greater than 0", ErrInvalidValue)
		}
		created, err := c.addCompletion(ctx, h, date, &amount)
		if err != nil && !errors.Is(err, ErrQueued) {
			return Toggle{}, err
		}
		return Toggle{Completion: &created}, err
	}

	all, err := c.Completions(ctx)
	if err != nil {
		return Toggle{}, err
	}
	var existing []models.Completion
	for _, cp := range all {
		if cp.HabitID == habitID && cp.Date == date {
			existing = append(existing, cp)
		}
	}
	if len(existing) == 0 {
		created, err := c.addCompletion(ctx, h, date, nil)
		if err != nil && !errors.Is(err, ErrQueued) {
			return Toggle{}, err
		}
		return Toggle{Completion: &created}, err
	}

	ids := []string{habitID}
	for _, cp := range existing {
		ids = append(ids, cp.ID)
	}
	queue := c.deferred(ctx, ids...)
	for i, cp := range existing {
		if err := c.removeCompletion(ctx, cp, queue); err != nil {
			return Toggle{Removed: existing[:i]}, err
		}
	}
	if queue {
		return Toggle{Removed: existing}, c.drainIfOnline(ctx)
	}
	return Toggle{Removed: existing}, nil
}

func (c *Coordinator) addCompletion(ctx context.Context, h models.Habit, date string, value *float64) (models.Completion, error) {
	cp := models.Completion{
		UserID:    h.UserID,
		HabitID:   h.ID,
		Date:      date,
		Value:     value,
		CreatedAt: c.now(),
	}

	if c.deferred(ctx, h.ID) {
		cp.ID = models.NewProvisionalID()
		if err := c.local.PutCompletion(ctx, cp); err != nil {
			return models.Completion{}, err
		}
		if err := c.enqueue(ctx, models.OpCreate, models.CollectionCompletions, cp); err != nil {
			_ = c.local.DeleteCompletion(ctx, cp.ID)
			return models.Completion{}, err
		}
		c.rememberCompletion(cp)
		return cp, c.drainIfOnline(ctx)
	}

	cp.ID = models.NewID()
	var created models.Completion
	if err := c.call(ctx, func(ctx context.Context) error {
		var err error
		created, err = c.remote.CreateCompletion(ctx, h.UserID, cp)
		return err
	}); err != nil {
		return models.Completion{}, err
	}
	mirror("completion "+created.ID, c.local.PutCompletion(ctx, created))
	c.rememberCompletion(created)
	return created, nil
}

func (c *Coordinator) removeCompletion(ctx context.Context, cp models.Completion, queue bool) error {
	if queue {
		if err := c.enqueue(ctx, models.OpDelete, models.CollectionCompletions, models.DeletePayload{ID: cp.ID, UserID: cp.UserID}); err != nil {
			return err
		}
		if err := c.local.DeleteCompletion(ctx, cp.ID); err != nil && !storage.IsNotFound(err) {
			return err
		}
		c.forgetCompletion(cp.ID)
		return nil
	}

	if err := c.call(ctx, func(ctx context.Context) error {
		return c.remote.DeleteCompletion(ctx, cp.UserID, cp.ID)
	}); err != nil {
		return err
	}
	if err := c.local.DeleteCompletion(ctx, cp.ID); err != nil && !storage.IsNotFound(err) {
		mirror("completion "+cp.ID, err)
	}
	c.forgetCompletion(cp.ID)
	return nil
}

// AddAchievement unlocks an achievement. added is false when it was already
// unlocked; unlocks are never revoked or re-stamped.
func (c *Coordinator) AddAchievement(ctx context.Context, achievementID string) (unlock models.AchievementUnlock, added bool, err error) {
	if _, ok := achievements.Lookup(achievementID); !ok {
		return models.AchievementUnlock{}, false, fmt.Errorf("%w: unknown achievement %q", ErrInvalidValue, achievementID)
	}
	unlocks, err := c.UnlockedAchievements(ctx)
	if err != nil {
		return models.AchievementUnlock{}, false, err
	}
	for _, u := range unlocks {
		if u.AchievementID == achievementID {
			return u, false, nil
		}
	}
	userID, err := c.userID(ctx)
	if err != nil {
		return models.AchievementUnlock{}, false, err
	}

	unlock = models.AchievementUnlock{UserID: userID, AchievementID: achievementID, UnlockedAt: c.now()}
	if c.deferred(ctx) {
		if err := c.local.PutAchievement(ctx, unlock); err != nil {
			return models.AchievementUnlock{}, false, err
		}
		if err := c.enqueue(ctx, models.OpCreate, models.CollectionAchievements, unlock); err != nil {
			return models.AchievementUnlock{}, false, err
		}
		c.rememberUnlock(unlock)
		return unlock, true, c.drainIfOnline(ctx)
	}

	if err := c.call(ctx, func(ctx context.Context) error {
		var err error
		unlock, err = c.remote.UnlockAchievement(ctx, userID, achievementID, unlock.UnlockedAt)
		return err
	}); err != nil {
		return models.AchievementUnlock{}, false, err
	}
	mirror("achievement "+unlock.Key(), c.local.PutAchievement(ctx, unlock))
	c.rememberUnlock(unlock)
	return unlock, true, nil
}

// EvaluateAchievements unlocks every achievement whose condition now holds
// and returns the ids that were newly unlocked.
func (c *Coordinator) EvaluateAchievements(ctx context.Context) ([]string, error) {
	habits, err := c.Habits(ctx)
	if err != nil {
		return nil, err
	}
	completions, err := c.Completions(ctx)
	if err != nil {
		return nil, err
	}
	unlocked, err := c.Unlocked(ctx)
	if err != nil {
		return nil, err
	}

	earned := achievements.Evaluate(achievements.Snapshot{
		Habits:      habits,
		Completions: completions,
		Today:       c.opts.Now(),
	}, unlocked)

	var added []string
	var queued error
	for _, id := range earned {
		_, ok, err := c.AddAchievement(ctx, id)
		if err != nil && !errors.Is(err, ErrQueued) {
			return added, err
		}
		if err != nil && queued == nil {
			queued = err
		}
		if ok {
			log.Info("Achievement unlocked", "achievement", id)
			added = append(added, id)
		}
	}
	return added, queued
}

// habit finds a habit among the user's current records.
func (c *Coordinator) habit(ctx context.Context, id string) (models.Habit, error) {
	habits, err := c.Habits(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	for _, h := range habits {
		if h.ID == id {
			return h, nil
		}
	}
	return models.Habit{}, fmt.Errorf("habit %s: %w", id, storage.ErrNotFound)
}
