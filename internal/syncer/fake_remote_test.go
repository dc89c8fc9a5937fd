package syncer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

// fakeRemote is an in-memory gateway with the same idempotence and scoping
// rules as the PostgreSQL one.
type fakeRemote struct {
	mu          sync.Mutex
	habits      map[string]models.Habit
	completions map[string]models.Completion
	unlocks     map[string]models.AchievementUnlock
	failures    map[string]error
	calls       map[string]int
	// created lists habit names in the order the gateway first stored them.
	created []string

	// entered and release let a test hold CreateHabit mid-call.
	entered chan struct{}
	release chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		habits:      make(map[string]models.Habit),
		completions: make(map[string]models.Completion),
		unlocks:     make(map[string]models.AchievementUnlock),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

var _ storage.RemoteGateway = (*fakeRemote)(nil)

func (f *fakeRemote) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, method)
		return
	}
	f.failures[method] = err
}

func (f *fakeRemote) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// enter records a call and returns the injected failure, if any. The caller
// holds f.mu.
func (f *fakeRemote) enter(method string) error {
	f.calls[method]++
	return f.failures[method]
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("Ping")
}

func (f *fakeRemote) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListHabits"); err != nil {
		return nil, err
	}
	out := []models.Habit{}
	for _, h := range f.habits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRemote) CreateHabit(ctx context.Context, userID string, h models.Habit) (models.Habit, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateHabit"); err != nil {
		return models.Habit{}, err
	}
	if existing, ok := f.habits[h.ID]; ok {
		if existing.UserID != userID {
			return models.Habit{}, storage.ErrConflict
		}
		return existing, nil
	}
	h.UserID = userID
	f.habits[h.ID] = h
	f.created = append(f.created, h.Name)
	return h, nil
}

func (f *fakeRemote) createdOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

func (f *fakeRemote) UpdateHabit(ctx context.Context, userID string, h models.Habit) (models.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateHabit"); err != nil {
		return models.Habit{}, err
	}
	existing, ok := f.habits[h.ID]
	if !ok || existing.UserID != userID {
		return models.Habit{}, storage.ErrNotFound
	}
	h.UserID = userID
	h.CreatedAt = existing.CreatedAt
	f.habits[h.ID] = h
	return h, nil
}

func (f *fakeRemote) DeleteHabit(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteHabit"); err != nil {
		return err
	}
	if existing, ok := f.habits[id]; ok && existing.UserID == userID {
		delete(f.habits, id)
		for cid, c := range f.completions {
			if c.HabitID == id {
				delete(f.completions, cid)
			}
		}
	}
	return nil
}

func (f *fakeRemote) ListCompletions(ctx context.Context, userID string) ([]models.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListCompletions"); err != nil {
		return nil, err
	}
	out := []models.Completion{}
	for _, c := range f.completions {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRemote) CreateCompletion(ctx context.Context, userID string, c models.Completion) (models.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateCompletion"); err != nil {
		return models.Completion{}, err
	}
	if h, ok := f.habits[c.HabitID]; !ok || h.UserID != userID {
		return models.Completion{}, storage.ErrNotFound
	}
	if existing, ok := f.completions[c.ID]; ok {
		return existing, nil
	}
	c.UserID = userID
	f.completions[c.ID] = c
	return c, nil
}

func (f *fakeRemote) DeleteCompletion(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteCompletion"); err != nil {
		return err
	}
	if existing, ok := f.completions[id]; ok && existing.UserID == userID {
		delete(f.completions, id)
	}
	return nil
}

func (f *fakeRemote) ListAchievements(ctx context.Context, userID string) ([]models.AchievementUnlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListAchievements"); err != nil {
		return nil, err
	}
	out := []models.AchievementUnlock{}
	for _, u := range f.unlocks {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

func (f *fakeRemote) UnlockAchievement(ctx context.Context, userID, achievementID string, at time.Time) (models.AchievementUnlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UnlockAchievement"); err != nil {
		return models.AchievementUnlock{}, err
	}
	key := models.AchievementKey(userID, achievementID)
	if existing, ok := f.unlocks[key]; ok {
		return existing, nil
	}
	u := models.AchievementUnlock{UserID: userID, AchievementID: achievementID, UnlockedAt: at.UTC()}
	f.unlocks[key] = u
	return u, nil
}

func (f *fakeRemote) habitList() []models.Habit {
	habits, _ := f.ListHabits(context.Background(), testUser)
	return habits
}

func (f *fakeRemote) completionList() []models.Completion {
	completions, _ := f.ListCompletions(context.Background(), testUser)
	return completions
}
