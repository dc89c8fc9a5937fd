package stats

import (
	"sort"

	"github.com/julianstephens/habitsync/internal/models"
)

type dayTotal struct {
	count int
	sum   float64
}

// Index groups completions by habit and day.
type Index struct {
	byHabit map[string]map[string]dayTotal
}

// NewIndex builds an index over completions.
func NewIndex(completions []models.Completion) *Index {
	idx := &Index{byHabit: make(map[string]map[string]dayTotal)}
	for _, c := range completions {
		days, ok := idx.byHabit[c.HabitID]
		if !ok {
			days = make(map[string]dayTotal)
			idx.byHabit[c.HabitID] = days
		}
		t := days[c.Date]
		t.count++
		t.sum += c.Amount()
		days[c.Date] = t
	}
	return idx
}

// Total returns the summed value logged for a habit on date.
func (idx *Index) Total(habitID, date string) float64 {
	return idx.byHabit[habitID][date].sum
}

// Count returns the number of completion records for a habit on date.
func (idx *Index) Count(habitID, date string) int {
	return idx.byHabit[habitID][date].count
}

// IsComplete applies the habit's completion rule for date: any record for a
// boolean habit, sum >= target for a numeric one.
func (idx *Index) IsComplete(habit models.Habit, date string) bool {
	t, ok := idx.byHabit[habit.ID][date]
	if !ok {
		return false
	}
	if habit.IsNumeric() {
		return t.sum >= habit.Target()
	}
	return t.count > 0
}

// CompletedDates returns the sorted dates on which habit was complete.
func (idx *Index) CompletedDates(habit models.Habit) []string {
	var dates []string
	for date := range idx.byHabit[habit.ID] {
		if idx.IsComplete(habit, date) {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates
}

// IsCompleteOn reports whether habit met its completion rule on date.
func IsCompleteOn(habit models.Habit, completions []models.Completion, date string) bool {
	return NewIndex(completions).IsComplete(habit, date)
}

// CompletedDates returns the sorted dates on which habit was complete.
func CompletedDates(habit models.Habit, completions []models.Completion) []string {
	return NewIndex(completions).CompletedDates(habit)
}
