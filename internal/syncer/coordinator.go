// Package syncer mediates between the local store and the remote gateway.
// While online, actions go to the gateway and are mirrored locally. While
// offline, they are written locally and queued for replay when connectivity
// returns.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

var (
	// ErrSyncInProgress is returned when a drain is requested while another
	// one is running. The request is dropped.
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrInvalidValue   = errors.New("invalid value")
	// ErrQueued accompanies a successful result when an online mutation was
	// saved locally and queued but could not be replayed right away. The
	// change is kept and retried on the next drain.
	ErrQueued = errors.New("saved locally, not synced yet")
)

var log = logger.For("sync")

// Options tunes replay and timing. Zero fields take defaults.
type Options struct {
	// MaxAttempts is the number of failed replays after which an operation
	// is dead-lettered.
	MaxAttempts int
	// TriesPerDrain bounds the retries of one operation within one drain.
	TriesPerDrain  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RequestTimeout bounds each gateway call.
	RequestTimeout time.Duration
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = constants.DefaultMaxReplayAttempts
	}
	if o.TriesPerDrain <= 0 {
		o.TriesPerDrain = constants.ReplayTriesPerDrain
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = constants.DefaultReplayInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = constants.DefaultReplayMaxBackoff
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = constants.DefaultRequestTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// IdentityProvider yields the id of the signed-in user.
type IdentityProvider interface {
	UserID(ctx context.Context) (string, error)
}

// backuper is implemented by local stores that can snapshot themselves.
type backuper interface {
	Backup(ctx context.Context) (string, error)
}

// Coordinator is safe for concurrent use. The mutex guards in-memory state
// only and is never held across store or gateway calls.
type Coordinator struct {
	local    storage.LocalStore
	remote   storage.RemoteGateway
	identity IdentityProvider
	opts     Options

	online   atomic.Bool
	draining atomic.Bool

	mu          sync.Mutex
	habits      []models.Habit
	completions []models.Completion
	unlocked    []models.AchievementUnlock
	loading     bool
	lastErr     error
}

// New creates a coordinator. remote may be nil, in which case the coordinator
// stays offline.
func New(local storage.LocalStore, remote storage.RemoteGateway, identity IdentityProvider, opts Options) *Coordinator {
	return &Coordinator{
		local:    local,
		remote:   remote,
		identity: identity,
		opts:     opts.withDefaults(),
	}
}

// IsOnline reports the current connectivity state.
func (c *Coordinator) IsOnline() bool {
	return c.online.Load()
}

// SetOnline records a connectivity signal. An offline to online transition
// drains the pending queue. Without a gateway the coordinator stays offline.
func (c *Coordinator) SetOnline(ctx context.Context, online bool) error {
	if online && c.remote == nil {
		log.Warn("Ignoring online signal without a remote backend")
		return nil
	}
	was := c.online.Swap(online)
	if was == online {
		return nil
	}
	log.Info("Connectivity changed", "online", online)
	if err := c.local.SetMetadata(ctx, constants.MetadataLastOnline, fmt.Sprint(online)); err != nil {
		log.Warn("Failed to record connectivity state", "error", err)
	}
	if !online {
		return nil
	}
	if _, err := c.SyncOfflineData(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
		return err
	}
	return nil
}

// RetryPending drains the queue again when online and live operations are
// left over from a failed drain. ran is false when there was nothing to do.
func (c *Coordinator) RetryPending(ctx context.Context) (result SyncResult, ran bool, err error) {
	if !c.IsOnline() {
		return SyncResult{}, false, nil
	}
	n, err := c.PendingCount(ctx)
	if err != nil || n == 0 {
		return SyncResult{}, false, err
	}
	log.Debug("Retrying queued operations", "count", n)
	result, err = c.SyncOfflineData(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		return result, false, nil
	}
	return result, true, err
}

// Loading reports whether a refresh is in flight.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the error of the last failed refresh, or nil.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Habits returns the user's habits. Offline reads come from the local store,
// online reads from the last successful refresh.
func (c *Coordinator) Habits(ctx context.Context) ([]models.Habit, error) {
	if c.IsOnline() {
		c.mu.Lock()
		defer c.mu.Unlock()
		return append([]models.Habit(nil), c.habits...), nil
	}
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}
	return c.local.GetHabitsByUser(ctx, userID)
}

// Completions returns the user's completions.
func (c *Coordinator) Completions(ctx context.Context) ([]models.Completion, error) {
	if c.IsOnline() {
		c.mu.Lock()
		defer c.mu.Unlock()
		return append([]models.Completion(nil), c.completions...), nil
	}
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}
	return c.local.GetCompletionsByUser(ctx, userID)
}

// UnlockedAchievements returns the user's achievement unlocks.
func (c *Coordinator) UnlockedAchievements(ctx context.Context) ([]models.AchievementUnlock, error) {
	if c.IsOnline() {
		c.mu.Lock()
		defer c.mu.Unlock()
		return append([]models.AchievementUnlock(nil), c.unlocked...), nil
	}
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}
	return c.local.GetAchievementsByUser(ctx, userID)
}

// Unlocked returns the set of unlocked achievement ids.
func (c *Coordinator) Unlocked(ctx context.Context) (map[string]bool, error) {
	unlocks, err := c.UnlockedAchievements(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(unlocks))
	for _, u := range unlocks {
		set[u.AchievementID] = true
	}
	return set, nil
}

// PendingCount returns the number of live queued operations.
func (c *Coordinator) PendingCount(ctx context.Context) (int, error) {
	ops, err := c.local.PendingOperations(ctx)
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}

// LastSync returns the time of the last full drain. ok is false when the
// queue has never been fully drained.
func (c *Coordinator) LastSync(ctx context.Context) (t time.Time, ok bool, err error) {
	value, err := c.local.GetMetadata(ctx, constants.MetadataLastSync)
	if err != nil {
		if storage.IsNotFound(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	t, err = time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid %s metadata %q: %w", constants.MetadataLastSync, value, err)
	}
	return t, true, nil
}

// RefreshData loads the user's records. Online, it reads the gateway and
// refreshes the local cache; if the gateway fails the local cache is served
// and the error is returned. Offline, it reads the local store.
func (c *Coordinator) RefreshData(ctx context.Context) error {
	c.setLoading(true)
	defer c.setLoading(false)

	userID, err := c.userID(ctx)
	if err != nil {
		c.setErr(err)
		return err
	}

	if c.IsOnline() {
		snap, remoteErr := c.loadRemote(ctx, userID)
		if remoteErr == nil {
			c.cacheSnapshot(ctx, userID, snap)
			c.setErr(nil)
			return nil
		}
		log.Warn("Failed to load remote data, serving local cache", "error", remoteErr)
		c.setErr(remoteErr)
		if snap, err := c.loadLocal(ctx, userID); err == nil {
			c.setMemory(snap)
		}
		return remoteErr
	}

	snap, err := c.loadLocal(ctx, userID)
	if err != nil {
		c.setErr(err)
		return err
	}
	c.setMemory(snap)
	c.setErr(nil)
	return nil
}

// cacheSnapshot replaces the local cache with snap and sets memory. While
// operations are still queued, memory is read back from the local store so
// provisional records stay visible.
func (c *Coordinator) cacheSnapshot(ctx context.Context, userID string, snap storage.Snapshot) {
	if err := c.local.ReplaceUserData(ctx, userID, snap); err != nil {
		log.Warn("Failed to refresh local cache", "error", err)
		c.setMemory(snap)
		return
	}
	pending, err := c.PendingCount(ctx)
	if err != nil || pending == 0 {
		c.setMemory(snap)
		return
	}
	merged, err := c.loadLocal(ctx, userID)
	if err != nil {
		c.setMemory(snap)
		return
	}
	c.setMemory(merged)
}

func (c *Coordinator) loadRemote(ctx context.Context, userID string) (storage.Snapshot, error) {
	if c.remote == nil {
		return storage.Snapshot{}, storage.ErrOffline
	}
	var snap storage.Snapshot
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		if snap.Habits, err = c.remote.ListHabits(ctx, userID); err != nil {
			return err
		}
		if snap.Completions, err = c.remote.ListCompletions(ctx, userID); err != nil {
			return err
		}
		snap.Achievements, err = c.remote.ListAchievements(ctx, userID)
		return err
	})
	return snap, err
}

func (c *Coordinator) loadLocal(ctx context.Context, userID string) (storage.Snapshot, error) {
	var snap storage.Snapshot
	var err error
	if snap.Habits, err = c.local.GetHabitsByUser(ctx, userID); err != nil {
		return snap, err
	}
	if snap.Completions, err = c.local.GetCompletionsByUser(ctx, userID); err != nil {
		return snap, err
	}
	snap.Achievements, err = c.local.GetAchievementsByUser(ctx, userID)
	return snap, err
}

// call runs fn with the per-request timeout.
func (c *Coordinator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	return fn(ctx)
}

func (c *Coordinator) userID(ctx context.Context) (string, error) {
	id, err := c.identity.UserID(ctx)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *Coordinator) now() time.Time {
	return c.opts.Now().UTC()
}

func (c *Coordinator) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

func (c *Coordinator) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Coordinator) setMemory(snap storage.Snapshot) {
	habits := append([]models.Habit(nil), snap.Habits...)
	sort.SliceStable(habits, func(i, j int) bool { return habits[i].CreatedAt.Before(habits[j].CreatedAt) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.habits = habits
	c.completions = append([]models.Completion(nil), snap.Completions...)
	c.unlocked = append([]models.AchievementUnlock(nil), snap.Achievements...)
}

func (c *Coordinator) memorySnapshot() storage.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return storage.Snapshot{
		Habits:       append([]models.Habit(nil), c.habits...),
		Completions:  append([]models.Completion(nil), c.completions...),
		Achievements: append([]models.AchievementUnlock(nil), c.unlocked...),
	}
}

func (c *Coordinator) rememberHabit(h models.Habit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.habits {
		if c.habits[i].ID == h.ID {
			c.habits[i] = h
			return
		}
	}
	c.habits = append(c.habits, h)
}

func (c *Coordinator) forgetHabit(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	habits := c.habits[:0]
	for _, h := range c.habits {
		if h.ID != id {
			habits = append(habits, h)
		}
	}
	c.habits = habits
	completions := c.completions[:0]
	for _, cp := range c.completions {
		if cp.HabitID != id {
			completions = append(completions, cp)
		}
	}
	c.completions = completions
}

func (c *Coordinator) rememberCompletion(cp models.Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.completions {
		if c.completions[i].ID == cp.ID {
			c.completions[i] = cp
			return
		}
	}
	c.completions = append(c.completions, cp)
}

func (c *Coordinator) forgetCompletion(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	completions := c.completions[:0]
	for _, cp := range c.completions {
		if cp.ID != id {
			completions = append(completions, cp)
		}
	}
	c.completions = completions
}

func (c *Coordinator) rememberUnlock(u models.AchievementUnlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.unlocked {
		if existing.AchievementID == u.AchievementID {
			return
		}
	}
	c.unlocked = append(c.unlocked, u)
}
