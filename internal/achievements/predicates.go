package achievements

import (
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/stats"
)

func minHabits(n int) Predicate {
	return func(s Snapshot) bool {
		return len(s.Habits) >= n
	}
}

func minCompletions(n int) Predicate {
	return func(s Snapshot) bool {
		return len(s.Completions) >= n
	}
}

func anyHabitCompleted(s Snapshot) bool {
	idx := stats.NewIndex(s.Completions)
	for _, h := range s.Habits {
		if len(idx.CompletedDates(h)) > 0 {
			return true
		}
	}
	return false
}

func streakAtLeast(n int) Predicate {
	return func(s Snapshot) bool {
		idx := stats.NewIndex(s.Completions)
		for _, h := range s.Habits {
			if stats.CalculateStreak(idx.CompletedDates(h), s.Today).Longest >= n {
				return true
			}
		}
		return false
	}
}

func perfectRunAtLeast(n int) Predicate {
	return func(s Snapshot) bool {
		first := stats.FirstDate(s.Habits)
		if first == "" {
			return false
		}
		return stats.LongestPerfectRun(s.Habits, s.Completions, first, stats.DateOf(s.Today)) >= n
	}
}

func numericTargetReached(s Snapshot) bool {
	idx := stats.NewIndex(s.Completions)
	for _, h := range s.Habits {
		if h.IsNumeric() && len(idx.CompletedDates(h)) > 0 {
			return true
		}
	}
	return false
}

func morningDaysAtLeast(n int) Predicate {
	return func(s Snapshot) bool {
		idx := stats.NewIndex(s.Completions)
		days := make(map[string]struct{})
		for _, h := range s.Habits {
			if h.TimeOfDay != models.TimeOfDayMorning {
				continue
			}
			for _, d := range idx.CompletedDates(h) {
				days[d] = struct{}{}
			}
		}
		return len(days) >= n
	}
}
