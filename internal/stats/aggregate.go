package stats

import (
	"time"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/models"
)

// DayResult is the completion picture of a single day across active habits.
type DayResult struct {
	Date       string  `json:"date"`
	Active     int     `json:"active"`
	Completed  int     `json:"completed"`
	Percentage float64 `json:"percentage"`
}

// IsPerfect reports whether every active habit was completed, given enough
// active habits for the day to count.
func (r DayResult) IsPerfect() bool {
	return r.Active >= constants.MinPerfectDayHabits && r.Completed == r.Active
}

// HabitSummary holds derived statistics for one habit.
type HabitSummary struct {
	HabitID        string  `json:"habit_id"`
	Name           string  `json:"name"`
	Streak         Streak  `json:"streak"`
	DaysCompleted  int     `json:"days_completed"`
	TrackedDays    int     `json:"tracked_days"`
	CompletionRate float64 `json:"completion_rate"`
	TotalValue     float64 `json:"total_value"`
	CompletedToday bool    `json:"completed_today"`
}

// Summary holds derived statistics across all habits.
type Summary struct {
	TotalHabits      int            `json:"total_habits"`
	TotalCompletions int            `json:"total_completions"`
	Today            DayResult      `json:"today"`
	PerfectDays      int            `json:"perfect_days"`
	BestCurrent      int            `json:"best_current_streak"`
	LongestStreak    int            `json:"longest_streak"`
	Habits           []HabitSummary `json:"habits"`
}

// CreatedDate returns the local calendar day a habit was created on.
func CreatedDate(h models.Habit) string {
	return h.CreatedAt.In(time.Local).Format(constants.DateFormat)
}

// ActiveHabitsOn returns the habits created on or before date.
func ActiveHabitsOn(habits []models.Habit, date string) []models.Habit {
	var active []models.Habit
	for _, h := range habits {
		if CreatedDate(h) <= date {
			active = append(active, h)
		}
	}
	return active
}

// DayCompletion computes the completion percentage for date.
func DayCompletion(habits []models.Habit, completions []models.Completion, date string) DayResult {
	return dayCompletion(habits, NewIndex(completions), date)
}

func dayCompletion(habits []models.Habit, idx *Index, date string) DayResult {
	r := DayResult{Date: date}
	for _, h := range ActiveHabitsOn(habits, date) {
		r.Active++
		if idx.IsComplete(h, date) {
			r.Completed++
		}
	}
	if r.Active > 0 {
		r.Percentage = float64(r.Completed) / float64(r.Active) * 100
	}
	return r
}

// Range returns a DayResult for each day from..to inclusive.
func Range(habits []models.Habit, completions []models.Completion, from, to string) []DayResult {
	n, ok := DaysBetween(from, to)
	if !ok || n < 0 {
		return nil
	}
	idx := NewIndex(completions)
	results := make([]DayResult, 0, n+1)
	for i := 0; i <= n; i++ {
		date, err := AddDays(from, i)
		if err != nil {
			break
		}
		results = append(results, dayCompletion(habits, idx, date))
	}
	return results
}

// PerfectDays counts the perfect days from..to inclusive.
func PerfectDays(habits []models.Habit, completions []models.Completion, from, to string) int {
	count := 0
	for _, r := range Range(habits, completions, from, to) {
		if r.IsPerfect() {
			count++
		}
	}
	return count
}

// LongestPerfectRun returns the longest run of consecutive perfect days from..to.
func LongestPerfectRun(habits []models.Habit, completions []models.Completion, from, to string) int {
	longest, run := 0, 0
	for _, r := range Range(habits, completions, from, to) {
		if r.IsPerfect() {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

// FirstDate returns the earliest habit creation date, or "" with no habits.
func FirstDate(habits []models.Habit) string {
	first := ""
	for _, h := range habits {
		d := CreatedDate(h)
		if first == "" || d < first {
			first = d
		}
	}
	return first
}

// HabitStats summarizes a single habit up to today.
func HabitStats(habit models.Habit, completions []models.Completion, today time.Time) HabitSummary {
	return habitStats(habit, NewIndex(completions), completions, today)
}

func habitStats(habit models.Habit, idx *Index, completions []models.Completion, today time.Time) HabitSummary {
	todayStr := DateOf(today)
	dates := idx.CompletedDates(habit)

	s := HabitSummary{
		HabitID:        habit.ID,
		Name:           habit.Name,
		Streak:         CalculateStreak(dates, today),
		DaysCompleted:  len(dates),
		CompletedToday: idx.IsComplete(habit, todayStr),
	}

	if n, ok := DaysBetween(CreatedDate(habit), todayStr); ok && n >= 0 {
		s.TrackedDays = n + 1
		s.CompletionRate = float64(s.DaysCompleted) / float64(s.TrackedDays) * 100
		if s.CompletionRate > 100 {
			s.CompletionRate = 100
		}
	}

	if habit.IsNumeric() {
		for _, c := range completions {
			if c.HabitID == habit.ID {
				s.TotalValue += c.Amount()
			}
		}
	}

	return s
}

// Summarize computes statistics across all habits up to today.
func Summarize(habits []models.Habit, completions []models.Completion, today time.Time) Summary {
	idx := NewIndex(completions)
	todayStr := DateOf(today)

	s := Summary{
		TotalHabits:      len(habits),
		TotalCompletions: len(completions),
		Today:            dayCompletion(habits, idx, todayStr),
	}

	for _, h := range habits {
		hs := habitStats(h, idx, completions, today)
		s.Habits = append(s.Habits, hs)
		if hs.Streak.Current > s.BestCurrent {
			s.BestCurrent = hs.Streak.Current
		}
		if hs.Streak.Longest > s.LongestStreak {
			s.LongestStreak = hs.Streak.Longest
		}
	}

	if first := FirstDate(habits); first != "" {
		s.PerfectDays = PerfectDays(habits, completions, first, todayStr)
	}

	return s
}
