// Package achievements holds the static achievement table and evaluates it
// against a user's habits and completions.
package achievements

import (
	"time"

	"github.com/julianstephens/habitsync/internal/models"
)

// Snapshot is the data a predicate is evaluated against.
type Snapshot struct {
	Habits      []models.Habit
	Completions []models.Completion
	Today       time.Time
}

// Predicate reports whether an achievement's condition holds.
type Predicate func(Snapshot) bool

// Definition describes an achievement. Definitions are process-wide and read-only.
type Definition struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Check       Predicate
}

var definitions = []Definition{
	{
		ID:          "first_habit",
		Name:        "Getting Started",
		Description: "Create your first habit",
		Icon:        "🌱",
		Check:       minHabits(1),
	},
	{
		ID:          "habit_collector",
		Name:        "Habit Collector",
		Description: "Track 5 habits at once",
		Icon:        "📚",
		Check:       minHabits(5),
	},
	{
		ID:          "first_step",
		Name:        "First Step",
		Description: "Complete a habit for the first time",
		Icon:        "👣",
		Check:       anyHabitCompleted,
	},
	{
		ID:          "streak_3",
		Name:        "On a Roll",
		Description: "Reach a 3-day streak",
		Icon:        "🔥",
		Check:       streakAtLeast(3),
	},
	{
		ID:          "streak_7",
		Name:        "Week Warrior",
		Description: "Reach a 7-day streak",
		Icon:        "⚡",
		Check:       streakAtLeast(7),
	},
	{
		ID:          "streak_30",
		Name:        "Monthly Master",
		Description: "Reach a 30-day streak",
		Icon:        "🏆",
		Check:       streakAtLeast(30),
	},
	{
		ID:          "streak_100",
		Name:        "Centurion",
		Description: "Reach a 100-day streak",
		Icon:        "💯",
		Check:       streakAtLeast(100),
	},
	{
		ID:          "perfect_day",
		Name:        "Perfect Day",
		Description: "Complete every habit in a single day",
		Icon:        "⭐",
		Check:       perfectRunAtLeast(1),
	},
	{
		ID:          "perfect_week",
		Name:        "Perfect Week",
		Description: "Have 7 perfect days in a row",
		Icon:        "🌟",
		Check:       perfectRunAtLeast(7),
	},
	{
		ID:          "century",
		Name:        "Century",
		Description: "Log 100 completions",
		Icon:        "🎯",
		Check:       minCompletions(100),
	},
	{
		ID:          "numeric_goal",
		Name:        "Goal Getter",
		Description: "Reach the daily target of a numeric habit",
		Icon:        "📈",
		Check:       numericTargetReached,
	},
	{
		ID:          "early_bird",
		Name:        "Early Bird",
		Description: "Complete a morning habit on 7 different days",
		Icon:        "🌅",
		Check:       morningDaysAtLeast(7),
	},
}

// All returns every achievement definition in display order.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition with the given id.
func Lookup(id string) (Definition, bool) {
	for _, d := range definitions {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Evaluate returns the ids of achievements whose condition now holds and that
// are not in unlocked. It never reports an already unlocked achievement.
func Evaluate(s Snapshot, unlocked map[string]bool) []string {
	var earned []string
	for _, d := range definitions {
		if unlocked[d.ID] {
			continue
		}
		if d.Check(s) {
			earned = append(earned, d.ID)
		}
	}
	return earned
}
