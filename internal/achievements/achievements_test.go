package achievements

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitsync/internal/models"
)

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.Local)
}

func dailyCompletions(habitID string, start time.Time, n int) []models.Completion {
	var out []models.Completion
	for i := 0; i < n; i++ {
		out = append(out, models.Completion{
			ID:      fmt.Sprintf("%s-%d", habitID, i),
			HabitID: habitID,
			Date:    start.AddDate(0, 0, i).Format("2006-01-02"),
		})
	}
	return out
}

func TestDefinitionsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range All() {
		require.NotEmpty(t, d.ID)
		require.NotNil(t, d.Check, "definition %s has no predicate", d.ID)
		assert.False(t, seen[d.ID], "duplicate definition %s", d.ID)
		seen[d.ID] = true
	}

	d, ok := Lookup("streak_7")
	require.True(t, ok)
	assert.Equal(t, "Week Warrior", d.Name)

	_, ok = Lookup("missing")
	assert.False(t, ok)
}

func TestEvaluate_EmptySnapshot(t *testing.T) {
	got := Evaluate(Snapshot{Today: at(2024, 1, 1)}, nil)
	assert.Empty(t, got)
}

func TestEvaluate_StreakAndPerfectWeek(t *testing.T) {
	start := at(2024, 1, 1)
	habits := []models.Habit{
		{ID: "h1", Name: "Meditate", Type: models.CompletionBoolean, TimeOfDay: models.TimeOfDayMorning, CreatedAt: start},
	}
	snap := Snapshot{
		Habits:      habits,
		Completions: dailyCompletions("h1", start, 7),
		Today:       start.AddDate(0, 0, 6),
	}

	got := Evaluate(snap, nil)
	assert.Equal(t, []string{
		"first_habit", "first_step", "streak_3", "streak_7", "perfect_day", "perfect_week", "early_bird",
	}, got)
}

func TestEvaluate_SkipsUnlocked(t *testing.T) {
	start := at(2024, 1, 1)
	snap := Snapshot{
		Habits:      []models.Habit{{ID: "h1", Type: models.CompletionBoolean, CreatedAt: start}},
		Completions: dailyCompletions("h1", start, 3),
		Today:       start.AddDate(0, 0, 2),
	}

	got := Evaluate(snap, map[string]bool{"first_habit": true, "first_step": true})
	assert.NotContains(t, got, "first_habit")
	assert.NotContains(t, got, "first_step")
	assert.Contains(t, got, "streak_3")
}

func TestEvaluate_NumericGoal(t *testing.T) {
	target := 3.0
	two, one := 2.0, 1.0
	start := at(2024, 2, 1)
	habits := []models.Habit{
		{ID: "water", Type: models.CompletionNumeric, TargetValue: &target, CreatedAt: start},
	}
	completions := []models.Completion{
		{ID: "c1", HabitID: "water", Date: "2024-02-01", Value: &two},
	}
	snap := Snapshot{Habits: habits, Completions: completions, Today: start}
	assert.NotContains(t, Evaluate(snap, nil), "numeric_goal")

	snap.Completions = append(snap.Completions, models.Completion{ID: "c2", HabitID: "water", Date: "2024-02-01", Value: &one})
	assert.Contains(t, Evaluate(snap, nil), "numeric_goal")
}

func TestEvaluate_PerfectDayRequiresAllActiveHabits(t *testing.T) {
	start := at(2024, 3, 1)
	habits := []models.Habit{
		{ID: "a", Type: models.CompletionBoolean, CreatedAt: start},
		{ID: "b", Type: models.CompletionBoolean, CreatedAt: start},
	}
	snap := Snapshot{
		Habits:      habits,
		Completions: dailyCompletions("a", start, 1),
		Today:       start,
	}
	assert.NotContains(t, Evaluate(snap, nil), "perfect_day")

	snap.Completions = append(snap.Completions, dailyCompletions("b", start, 1)...)
	assert.Contains(t, Evaluate(snap, nil), "perfect_day")
}
