package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "habitsync.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("Failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func floatp(v float64) *float64 { return &v }

var created = time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)

func sampleHabit(id, userID string) models.Habit {
	return models.Habit{
		ID:               id,
		UserID:           userID,
		Name:             "Drink water",
		Icon:             "💧",
		Color:            "#3b82f6",
		Type:             models.CompletionNumeric,
		Unit:             "glasses",
		TargetValue:      floatp(8),
		ReminderTimes:    []string{"08:00", "14:30"},
		TimeOfDay:        models.TimeOfDayMorning,
		RemindersEnabled: true,
		CreatedAt:        created,
		UpdatedAt:        created.Add(time.Hour),
	}
}

func TestHabitRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		habit models.Habit
	}{
		{name: "numeric with reminders", habit: sampleHabit("h1", "u1")},
		{
			name: "boolean with empty optionals",
			habit: models.Habit{
				ID:        "h2",
				UserID:    "u2",
				Name:      "Meditate",
				Type:      models.CompletionBoolean,
				CreatedAt: created,
				UpdatedAt: created,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.PutHabit(ctx, tt.habit); err != nil {
				t.Fatalf("PutHabit failed: %v", err)
			}

			habits, err := store.GetHabitsByUser(ctx, tt.habit.UserID)
			if err != nil {
				t.Fatalf("GetHabitsByUser failed: %v", err)
			}
			if len(habits) != 1 {
				t.Fatalf("expected 1 habit, got %d", len(habits))
			}
			if !reflect.DeepEqual(habits[0], tt.habit) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v", habits[0], tt.habit)
			}

			got, err := store.GetHabit(ctx, tt.habit.ID)
			if err != nil {
				t.Fatalf("GetHabit failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.habit) {
				t.Errorf("GetHabit mismatch:\n got  %+v\n want %+v", got, tt.habit)
			}
		})
	}
}

func TestPutHabitReplaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	h := sampleHabit("h1", "u1")
	if err := store.PutHabit(ctx, h); err != nil {
		t.Fatal(err)
	}
	h.Name = "Drink more water"
	if err := store.PutHabit(ctx, h); err != nil {
		t.Fatal(err)
	}

	habits, err := store.GetHabitsByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 1 || habits[0].Name != "Drink more water" {
		t.Errorf("expected a single replaced habit, got %+v", habits)
	}
}

func TestGetHabitNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetHabit(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetHabit error = %v, want ErrNotFound", err)
	}
}

func TestDeleteHabitRemovesCompletions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.PutHabit(ctx, sampleHabit("h1", "u1")); err != nil {
		t.Fatal(err)
	}
	if err := store.PutHabit(ctx, sampleHabit("h2", "u1")); err != nil {
		t.Fatal(err)
	}
	for _, c := range []models.Completion{
		{ID: "c1", UserID: "u1", HabitID: "h1", Date: "2024-01-02", CreatedAt: created},
		{ID: "c2", UserID: "u1", HabitID: "h1", Date: "2024-01-03", CreatedAt: created},
		{ID: "c3", UserID: "u1", HabitID: "h2", Date: "2024-01-03", CreatedAt: created},
	} {
		if err := store.PutCompletion(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.DeleteHabit(ctx, "h1"); err != nil {
		t.Fatalf("DeleteHabit failed: %v", err)
	}

	completions, err := store.GetCompletionsByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(completions) != 1 || completions[0].ID != "c3" {
		t.Errorf("expected only c3 to remain, got %+v", completions)
	}
	if _, err := store.GetHabit(ctx, "h1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("habit h1 still present: %v", err)
	}
}

func TestCompletionIndexes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, c := range []models.Completion{
		{ID: "c1", UserID: "u1", HabitID: "h1", Date: "2024-01-02", Value: floatp(2.5), CreatedAt: created},
		{ID: "c2", UserID: "u1", HabitID: "h2", Date: "2024-01-02", CreatedAt: created},
		{ID: "c3", UserID: "u1", HabitID: "h1", Date: "2024-01-03", CreatedAt: created},
		{ID: "c4", UserID: "u2", HabitID: "h9", Date: "2024-01-02", CreatedAt: created},
	} {
		if err := store.PutCompletion(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	byUser, err := store.GetCompletionsByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byUser) != 3 {
		t.Errorf("GetCompletionsByUser returned %d, want 3", len(byUser))
	}

	byHabit, err := store.GetCompletionsByHabit(ctx, "h1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byHabit) != 2 || byHabit[0].Amount() != 2.5 || byHabit[1].Value != nil {
		t.Errorf("GetCompletionsByHabit returned %+v", byHabit)
	}

	byDate, err := store.GetCompletionsByDate(ctx, "u1", "2024-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(byDate) != 2 {
		t.Errorf("GetCompletionsByDate returned %d, want 2", len(byDate))
	}

	if err := store.DeleteCompletion(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	byHabit, err = store.GetCompletionsByHabit(ctx, "h1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byHabit) != 1 {
		t.Errorf("expected 1 completion after delete, got %d", len(byHabit))
	}
}

func TestAchievementsKeyedByUserAndID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	unlock := models.AchievementUnlock{UserID: "u1", AchievementID: "first_habit", UnlockedAt: created}
	for i := 0; i < 2; i++ {
		if err := store.PutAchievement(ctx, unlock); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.PutAchievement(ctx, models.AchievementUnlock{UserID: "u2", AchievementID: "first_habit", UnlockedAt: created}); err != nil {
		t.Fatal(err)
	}

	unlocks, err := store.GetAchievementsByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(unlocks) != 1 || !reflect.DeepEqual(unlocks[0], unlock) {
		t.Errorf("GetAchievementsByUser = %+v, want [%+v]", unlocks, unlock)
	}
}

func newOp(t *testing.T, id string, at time.Time) models.PendingOperation {
	t.Helper()
	op, err := models.NewPendingOperation(models.OpCreate, models.CollectionHabits, sampleHabit(id, "u1"))
	if err != nil {
		t.Fatal(err)
	}
	op.ID = "op-" + id
	op.EnqueuedAt = at
	return op
}

func opIDs(ops []models.PendingOperation) []string {
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	return ids
}

func TestPendingOperationsFIFO(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t1 := created
	ops := []models.PendingOperation{
		newOp(t, "c", t1.Add(2*time.Second)),
		newOp(t, "a", t1),
		newOp(t, "b", t1.Add(time.Second)),
		newOp(t, "d", t1.Add(2*time.Second)), // same instant as c, enqueued later
		newOp(t, "e", t1.Add(10*time.Second+500*time.Millisecond)),
		newOp(t, "f", t1.Add(10*time.Second+time.Millisecond)),
	}
	for _, op := range ops {
		if err := store.EnqueueOperation(ctx, op); err != nil {
			t.Fatalf("EnqueueOperation failed: %v", err)
		}
	}

	pending, err := store.PendingOperations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"op-a", "op-b", "op-c", "op-d", "op-f", "op-e"}
	if got := opIDs(pending); !reflect.DeepEqual(got, want) {
		t.Errorf("PendingOperations order = %v, want %v", got, want)
	}

	var h models.Habit
	if err := pending[0].Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h.ID != "a" || !json.Valid(pending[0].Payload) {
		t.Errorf("payload did not survive the queue: %s", pending[0].Payload)
	}
}

func TestOperationBookkeeping(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	op := newOp(t, "a", created)
	if err := store.EnqueueOperation(ctx, op); err != nil {
		t.Fatal(err)
	}
	if err := store.EnqueueOperation(ctx, op); err == nil {
		t.Error("enqueueing the same operation twice should fail")
	}

	op.Attempts = 5
	op.LastError = "connection refused"
	op.Status = models.OpStatusDead
	if err := store.UpdateOperation(ctx, op); err != nil {
		t.Fatalf("UpdateOperation failed: %v", err)
	}

	pending, err := store.PendingOperations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("dead operation still pending: %v", opIDs(pending))
	}
	dead, err := store.DeadOperations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dead) != 1 || dead[0].Attempts != 5 || dead[0].LastError != "connection refused" {
		t.Fatalf("DeadOperations = %+v", dead)
	}

	if err := store.RequeueOperation(ctx, op.ID); err != nil {
		t.Fatalf("RequeueOperation failed: %v", err)
	}
	got, err := store.GetOperation(ctx, op.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.OpStatusPending || got.Attempts != 0 || got.LastError != "" {
		t.Errorf("requeued operation = %+v", got)
	}
	if err := store.RequeueOperation(ctx, op.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("requeueing a live operation error = %v, want ErrNotFound", err)
	}

	if err := store.DeleteOperation(ctx, op.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetOperation(ctx, op.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetOperation after delete error = %v, want ErrNotFound", err)
	}
	if err := store.UpdateOperation(ctx, op); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateOperation after delete error = %v, want ErrNotFound", err)
	}
}

func TestMetadata(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.GetMetadata(ctx, "lastSync"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetMetadata error = %v, want ErrNotFound", err)
	}
	for _, v := range []string{"2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z"} {
		if err := store.SetMetadata(ctx, "lastSync", v); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.GetMetadata(ctx, "lastSync")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2024-01-02T00:00:00Z" {
		t.Errorf("GetMetadata = %q", got)
	}
}

func TestReplaceUserData(t *testing.T) {
	ctx := context.Background()
	provisional := constants.ProvisionalIDPrefix

	seed := func(t *testing.T, store *Store) {
		t.Helper()
		for _, h := range []models.Habit{
			sampleHabit("stale", "u1"),
			sampleHabit(provisional+"new", "u1"),
			sampleHabit("other-user", "u2"),
		} {
			if err := store.PutHabit(ctx, h); err != nil {
				t.Fatal(err)
			}
		}
		if err := store.PutCompletion(ctx, models.Completion{ID: "stale-c", UserID: "u1", HabitID: "stale", Date: "2024-01-01", CreatedAt: created}); err != nil {
			t.Fatal(err)
		}
	}
	fresh := storage.Snapshot{
		Habits:       []models.Habit{sampleHabit("fresh", "u1")},
		Completions:  []models.Completion{{ID: "fresh-c", UserID: "u1", HabitID: "fresh", Date: "2024-01-05", CreatedAt: created}},
		Achievements: []models.AchievementUnlock{{UserID: "u1", AchievementID: "first_habit", UnlockedAt: created}},
	}

	t.Run("queue empty", func(t *testing.T) {
		store := setupTestStore(t)
		seed(t, store)

		if err := store.ReplaceUserData(ctx, "u1", fresh); err != nil {
			t.Fatalf("ReplaceUserData failed: %v", err)
		}

		habits, _ := store.GetHabitsByUser(ctx, "u1")
		if len(habits) != 1 || habits[0].ID != "fresh" {
			t.Errorf("habits after replace = %+v", habits)
		}
		completions, _ := store.GetCompletionsByUser(ctx, "u1")
		if len(completions) != 1 || completions[0].ID != "fresh-c" {
			t.Errorf("completions after replace = %+v", completions)
		}
		unlocks, _ := store.GetAchievementsByUser(ctx, "u1")
		if len(unlocks) != 1 {
			t.Errorf("achievements after replace = %+v", unlocks)
		}
		others, _ := store.GetHabitsByUser(ctx, "u2")
		if len(others) != 1 {
			t.Errorf("other user's cache was touched: %+v", others)
		}
	})

	t.Run("pending operations keep provisional records", func(t *testing.T) {
		store := setupTestStore(t)
		seed(t, store)
		if err := store.EnqueueOperation(ctx, newOp(t, provisional+"new", created)); err != nil {
			t.Fatal(err)
		}

		if err := store.ReplaceUserData(ctx, "u1", fresh); err != nil {
			t.Fatalf("ReplaceUserData failed: %v", err)
		}

		habits, _ := store.GetHabitsByUser(ctx, "u1")
		ids := map[string]bool{}
		for _, h := range habits {
			ids[h.ID] = true
		}
		if !ids["fresh"] || !ids[provisional+"new"] || ids["stale"] {
			t.Errorf("habits after replace = %v", ids)
		}
	})

	t.Run("pending operations hold back the records they touch", func(t *testing.T) {
		store := setupTestStore(t)

		edited := sampleHabit("h1", "u1")
		edited.Name = "Edited offline"
		if err := store.PutHabit(ctx, edited); err != nil {
			t.Fatal(err)
		}
		unlock := models.AchievementUnlock{UserID: "u1", AchievementID: "first_step", UnlockedAt: created}
		if err := store.PutAchievement(ctx, unlock); err != nil {
			t.Fatal(err)
		}
		enqueue := func(kind models.OpKind, collection models.Collection, payload any) {
			t.Helper()
			op, err := models.NewPendingOperation(kind, collection, payload)
			if err != nil {
				t.Fatal(err)
			}
			if err := store.EnqueueOperation(ctx, op); err != nil {
				t.Fatal(err)
			}
		}
		enqueue(models.OpUpdate, models.CollectionHabits, edited)
		enqueue(models.OpDelete, models.CollectionCompletions, models.DeletePayload{ID: "c1", UserID: "u1"})
		enqueue(models.OpDelete, models.CollectionHabits, models.DeletePayload{ID: "gone", UserID: "u1"})
		enqueue(models.OpCreate, models.CollectionAchievements, unlock)

		remoteHabit := sampleHabit("h1", "u1")
		remoteHabit.Name = "Remote name"
		authoritative := storage.Snapshot{
			Habits: []models.Habit{remoteHabit, sampleHabit("gone", "u1"), sampleHabit("fresh", "u1")},
			Completions: []models.Completion{
				{ID: "c1", UserID: "u1", HabitID: "h1", Date: "2024-01-05", CreatedAt: created},
				{ID: "gone-c", UserID: "u1", HabitID: "gone", Date: "2024-01-05", CreatedAt: created},
				{ID: "c2", UserID: "u1", HabitID: "h1", Date: "2024-01-06", CreatedAt: created},
			},
		}
		if err := store.ReplaceUserData(ctx, "u1", authoritative); err != nil {
			t.Fatalf("ReplaceUserData failed: %v", err)
		}

		h1, err := store.GetHabit(ctx, "h1")
		if err != nil {
			t.Fatal(err)
		}
		if h1.Name != "Edited offline" {
			t.Errorf("offline edit reverted: name = %q", h1.Name)
		}
		if _, err := store.GetHabit(ctx, "gone"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("habit deleted offline came back: err = %v", err)
		}
		if _, err := store.GetHabit(ctx, "fresh"); err != nil {
			t.Errorf("untouched remote habit missing: %v", err)
		}

		completions, _ := store.GetCompletionsByUser(ctx, "u1")
		if len(completions) != 1 || completions[0].ID != "c2" {
			t.Errorf("completions after replace = %+v, want only c2", completions)
		}

		unlocks, _ := store.GetAchievementsByUser(ctx, "u1")
		if len(unlocks) != 1 || unlocks[0].AchievementID != "first_step" {
			t.Errorf("offline unlock dropped: %+v", unlocks)
		}
	})

	t.Run("provisional record shadows its replayed copy", func(t *testing.T) {
		store := setupTestStore(t)
		if err := store.PutHabit(ctx, sampleHabit(provisional+"abc", "u1")); err != nil {
			t.Fatal(err)
		}
		if err := store.EnqueueOperation(ctx, newOp(t, "other", created)); err != nil {
			t.Fatal(err)
		}

		replayed := storage.Snapshot{Habits: []models.Habit{sampleHabit("abc", "u1")}}
		if err := store.ReplaceUserData(ctx, "u1", replayed); err != nil {
			t.Fatalf("ReplaceUserData failed: %v", err)
		}

		habits, _ := store.GetHabitsByUser(ctx, "u1")
		if len(habits) != 1 || habits[0].ID != provisional+"abc" {
			t.Errorf("habits after replace = %+v, want only the provisional copy", habits)
		}
	})
}

func TestStorageUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	store := NewStore(filepath.Join(blocker, "habitsync.db"))
	ctx := context.Background()

	if err := store.Init(); !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Fatalf("Init error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := store.GetHabitsByUser(ctx, "u1"); !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Errorf("GetHabitsByUser error = %v, want ErrStorageUnavailable", err)
	}
	if err := store.EnqueueOperation(ctx, newOp(t, "a", created)); !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Errorf("EnqueueOperation error = %v, want ErrStorageUnavailable", err)
	}
}

func TestSchemaVersion(t *testing.T) {
	store := setupTestStore(t)

	current, latest, err := store.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if current != latest || latest < 1 {
		t.Errorf("SchemaVersion() = %d, %d; want migrated to latest", current, latest)
	}
}

func TestBackup(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "habitsync.db"), WithBackupsKept(2))
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	for i := 0; i < 3; i++ {
		if _, err := store.Backup(context.Background()); err != nil {
			t.Fatalf("Backup failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	backups, err := store.Backups().ListBackups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Errorf("expected 2 backups kept, got %d", len(backups))
	}
}
