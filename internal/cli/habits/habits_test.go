package habits

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/config"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/stats"
)

func setupTestContext(t *testing.T) *cli.Context {
	t.Helper()
	cfg := config.Config{
		DataPath:             filepath.Join(t.TempDir(), "habitsync.db"),
		UserID:               "user-1",
		ProbeInterval:        time.Second,
		MaxReplayAttempts:    3,
		ReplayInitialBackoff: time.Millisecond,
		ReplayMaxBackoff:     time.Millisecond,
		RequestTimeout:       time.Second,
		BackupsKept:          3,
	}
	ctx := cli.NewContext(context.Background(), cfg)
	t.Cleanup(ctx.Close)
	return ctx
}

func addHabit(t *testing.T, ctx *cli.Context, cmd HabitAddCmd) models.Habit {
	t.Helper()
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("habit add failed: %v", err)
	}
	h, err := ctx.FindHabit(cmd.Name)
	if err != nil {
		t.Fatalf("added habit not found: %v", err)
	}
	return h
}

func TestHabitAddCmd_Offline(t *testing.T) {
	ctx := setupTestContext(t)

	h := addHabit(t, ctx, HabitAddCmd{Name: "Read", TimeOfDay: "evening"})

	if !models.IsProvisional(h.ID) {
		t.Errorf("expected a provisional id while offline, got %q", h.ID)
	}
	if h.TimeOfDay != models.TimeOfDayEvening {
		t.Errorf("TimeOfDay = %q, want %q", h.TimeOfDay, models.TimeOfDayEvening)
	}
	pending, err := ctx.Coordinator.PendingCount(ctx.Context())
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if pending == 0 {
		t.Error("expected the new habit to be queued")
	}
}

func TestHabitAddCmd_DuplicateName(t *testing.T) {
	ctx := setupTestContext(t)
	addHabit(t, ctx, HabitAddCmd{Name: "Read"})

	if err := (&HabitAddCmd{Name: "read"}).Run(ctx); err == nil {
		t.Error("expected an error for a duplicate habit name")
	}
}

func TestHabitAddCmd_UnlocksFirstHabit(t *testing.T) {
	ctx := setupTestContext(t)
	addHabit(t, ctx, HabitAddCmd{Name: "Read"})

	unlocked, err := ctx.Coordinator.Unlocked(ctx.Context())
	if err != nil {
		t.Fatalf("Unlocked failed: %v", err)
	}
	if !unlocked["first_habit"] {
		t.Error("expected first_habit to be unlocked after adding a habit")
	}
}

func TestHabitToggleCmd(t *testing.T) {
	ctx := setupTestContext(t)
	h := addHabit(t, ctx, HabitAddCmd{Name: "Meditate"})

	cmd := &HabitToggleCmd{Habit: "Meditate"}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("first toggle failed: %v", err)
	}
	completions, err := ctx.Coordinator.Completions(ctx.Context())
	if err != nil {
		t.Fatalf("Completions failed: %v", err)
	}
	if !stats.IsCompleteOn(h, completions, ctx.Today()) {
		t.Fatal("habit should be complete after the first toggle")
	}

	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	completions, err = ctx.Coordinator.Completions(ctx.Context())
	if err != nil {
		t.Fatalf("Completions failed: %v", err)
	}
	if stats.IsCompleteOn(h, completions, ctx.Today()) {
		t.Error("habit should be incomplete after the second toggle")
	}
}

func TestHabitToggleCmd_InvalidDate(t *testing.T) {
	ctx := setupTestContext(t)
	addHabit(t, ctx, HabitAddCmd{Name: "Meditate"})

	if err := (&HabitToggleCmd{Habit: "Meditate", Date: "2024/01/02"}).Run(ctx); err == nil {
		t.Error("expected an error for a malformed date")
	}
}

func TestHabitLogCmd(t *testing.T) {
	ctx := setupTestContext(t)
	h := addHabit(t, ctx, HabitAddCmd{Name: "Water", Numeric: true, Target: 8, Unit: "glasses"})

	if err := (&HabitLogCmd{Habit: "Water", Value: 3}).Run(ctx); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if err := (&HabitLogCmd{Habit: "Water"}).Run(ctx); err != nil {
		t.Fatalf("log with default value failed: %v", err)
	}

	completions, err := ctx.Coordinator.Completions(ctx.Context())
	if err != nil {
		t.Fatalf("Completions failed: %v", err)
	}
	if total := stats.NewIndex(completions).Total(h.ID, ctx.Today()); total != 4 {
		t.Errorf("total = %g, want 4", total)
	}
}

func TestHabitLogCmd_BooleanHabit(t *testing.T) {
	ctx := setupTestContext(t)
	addHabit(t, ctx, HabitAddCmd{Name: "Meditate"})

	if err := (&HabitLogCmd{Habit: "Meditate", Value: 2}).Run(ctx); err == nil {
		t.Error("expected an error when logging a boolean habit")
	}
}

func TestHabitEditCmd(t *testing.T) {
	ctx := setupTestContext(t)
	h := addHabit(t, ctx, HabitAddCmd{Name: "Read"})

	if err := (&HabitEditCmd{Habit: "Read", Name: "Read fiction", Icon: "📖"}).Run(ctx); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	edited, err := ctx.FindHabit("Read fiction")
	if err != nil {
		t.Fatalf("renamed habit not found: %v", err)
	}
	if edited.ID != h.ID || edited.Icon != "📖" {
		t.Errorf("unexpected habit after edit: %+v", edited)
	}

	if err := (&HabitEditCmd{Habit: "Read fiction", Target: 3}).Run(ctx); err == nil {
		t.Error("expected an error when setting a target on a boolean habit")
	}
}

func TestHabitDeleteCmd(t *testing.T) {
	ctx := setupTestContext(t)
	addHabit(t, ctx, HabitAddCmd{Name: "Read"})
	if err := (&HabitToggleCmd{Habit: "Read"}).Run(ctx); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	if err := (&HabitDeleteCmd{Habit: "Read"}).Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	habits, err := ctx.Coordinator.Habits(ctx.Context())
	if err != nil {
		t.Fatalf("Habits failed: %v", err)
	}
	if len(habits) != 0 {
		t.Errorf("expected no habits after delete, got %d", len(habits))
	}
	if _, err := ctx.FindHabit("Read"); err == nil {
		t.Error("deleted habit should not be found")
	}
}

func TestReportCommands(t *testing.T) {
	ctx := setupTestContext(t)
	addHabit(t, ctx, HabitAddCmd{Name: "Read"})
	addHabit(t, ctx, HabitAddCmd{Name: "Water", Numeric: true, Target: 2})
	if err := (&HabitToggleCmd{Habit: "Read"}).Run(ctx); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
	}{
		{"list", func() error { return (&HabitListCmd{}).Run(ctx) }},
		{"today", func() error { return (&TodayCmd{}).Run(ctx) }},
		{"stats", func() error { return (&StatsCmd{}).Run(ctx) }},
		{"stats json", func() error { return (&StatsCmd{JSON: true}).Run(ctx) }},
		{"stats habit", func() error { return (&StatsCmd{Habit: "Water"}).Run(ctx) }},
		{"calendar", func() error { return (&CalendarCmd{}).Run(ctx) }},
		{"calendar month", func() error { return (&CalendarCmd{Month: "2024-02"}).Run(ctx) }},
		{"achievements", func() error { return (&AchievementsCmd{Evaluate: true}).Run(ctx) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err != nil {
				t.Errorf("%s failed: %v", tt.name, err)
			}
		})
	}

	if err := (&CalendarCmd{Month: "February"}).Run(ctx); err == nil {
		t.Error("expected an error for a malformed month")
	}
	if err := (&StatsCmd{Habit: "missing"}).Run(ctx); err == nil {
		t.Error("expected an error for an unknown habit")
	}
}
