package system

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
)

func TestInitCmd_Success(t *testing.T) {
	ctx := setupTestContext(t, testConfig(t))

	cmd := &InitCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("init command failed: %v", err)
	}

	if _, err := os.Stat(ctx.Config.DataPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", ctx.Config.DataPath)
	}
}

func TestInitCmd_Idempotent(t *testing.T) {
	ctx := setupTestContext(t, testConfig(t))

	cmd := &InitCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("second init failed (should be idempotent): %v", err)
	}
}

func TestInitCmd_ForceDeletesExisting(t *testing.T) {
	ctx := setupTestContext(t, testConfig(t))
	bg := context.Background()

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("initial init failed: %v", err)
	}

	habit := models.Habit{ID: "h1", UserID: testUser, Name: "Read", Type: models.CompletionBoolean, CreatedAt: time.Now()}
	if err := ctx.Store.PutHabit(bg, habit); err != nil {
		t.Fatalf("failed to add habit: %v", err)
	}

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("init with force failed: %v", err)
	}

	habits, err := ctx.Store.GetHabitsByUser(bg, testUser)
	if err != nil {
		t.Fatalf("failed to list habits after force: %v", err)
	}
	if len(habits) != 0 {
		t.Errorf("expected an empty database after force, got %d habits", len(habits))
	}
}

func TestInitCmd_ForceWithNonExistentDatabase(t *testing.T) {
	ctx := setupTestContext(t, testConfig(t))

	if _, err := os.Stat(ctx.Config.DataPath); !os.IsNotExist(err) {
		t.Fatalf("database file should not exist initially")
	}

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("init with force on non-existent database failed: %v", err)
	}

	if _, err := os.Stat(ctx.Config.DataPath); os.IsNotExist(err) {
		t.Errorf("database file was not created")
	}
}

func TestInitCmd_ImportSource(t *testing.T) {
	bg := context.Background()

	sourceCfg := testConfig(t)
	source := sqlite.NewStore(sourceCfg.DataPath)
	if err := source.Init(); err != nil {
		t.Fatalf("failed to init source: %v", err)
	}
	now := time.Now()
	if err := source.PutHabit(bg, models.Habit{ID: "h1", UserID: testUser, Name: "Read", Type: models.CompletionBoolean, CreatedAt: now}); err != nil {
		t.Fatalf("failed to seed habit: %v", err)
	}
	if err := source.PutHabit(bg, models.Habit{ID: "h2", UserID: "someone-else", Name: "Run", Type: models.CompletionBoolean, CreatedAt: now}); err != nil {
		t.Fatalf("failed to seed habit: %v", err)
	}
	if err := source.PutCompletion(bg, models.Completion{ID: "c1", UserID: testUser, HabitID: "h1", Date: "2024-01-02", CreatedAt: now}); err != nil {
		t.Fatalf("failed to seed completion: %v", err)
	}
	if err := source.Close(); err != nil {
		t.Fatalf("failed to close source: %v", err)
	}

	ctx := setupTestContext(t, testConfig(t))
	if err := (&InitCmd{Source: sourceCfg.DataPath}).Run(ctx); err != nil {
		t.Fatalf("init with import failed: %v", err)
	}

	habits, err := ctx.Store.GetHabitsByUser(bg, testUser)
	if err != nil {
		t.Fatalf("failed to list habits: %v", err)
	}
	if len(habits) != 1 || habits[0].ID != "h1" {
		t.Errorf("expected only the signed-in user's habit to be imported, got %+v", habits)
	}
	completions, err := ctx.Store.GetCompletionsByUser(bg, testUser)
	if err != nil {
		t.Fatalf("failed to list completions: %v", err)
	}
	if len(completions) != 1 {
		t.Errorf("expected 1 imported completion, got %d", len(completions))
	}
}

func TestInitCmd_ForceRejectsSameSource(t *testing.T) {
	ctx := setupTestContext(t, testConfig(t))

	cmd := &InitCmd{Force: true, Source: ctx.Config.DataPath}
	if err := cmd.Run(ctx); err == nil {
		t.Error("expected an error when source and destination are the same")
	}
}
