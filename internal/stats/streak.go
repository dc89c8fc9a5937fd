package stats

import (
	"sort"
	"time"

	"github.com/julianstephens/habitsync/internal/constants"
)

// Streak holds the current and longest run of consecutive calendar days.
type Streak struct {
	Current int `json:"current_streak"`
	Longest int `json:"longest_streak"`
}

// CalculateStreak computes streaks from an unordered list of YYYY-MM-DD dates.
// Duplicates and unparseable dates are ignored. The current streak is only
// non-zero when the most recent date is today or yesterday relative to today.
func CalculateStreak(dates []string, today time.Time) Streak {
	days := uniqueDayNumbers(dates)
	if len(days) == 0 {
		return Streak{}
	}

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	current := run
	if dayNumberOf(today)-days[len(days)-1] > 1 {
		current = 0
	}

	return Streak{Current: current, Longest: longest}
}

// uniqueDayNumbers parses, deduplicates and sorts dates as day numbers.
func uniqueDayNumbers(dates []string) []int64 {
	seen := make(map[int64]struct{}, len(dates))
	days := make([]int64, 0, len(dates))
	for _, d := range dates {
		n, ok := dayNumber(d)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		days = append(days, n)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// dayNumber converts a YYYY-MM-DD string into a count of calendar days since
// the Unix epoch. Working on civil dates keeps DST shifts out of the deltas.
func dayNumber(date string) (int64, bool) {
	t, err := time.Parse(constants.DateFormat, date)
	if err != nil {
		return 0, false
	}
	return t.Unix() / 86400, true
}

// dayNumberOf returns the day number of t's calendar day in t's location.
func dayNumberOf(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// DaysBetween returns the number of calendar days from a to b (b - a).
func DaysBetween(a, b string) (int, bool) {
	na, ok := dayNumber(a)
	if !ok {
		return 0, false
	}
	nb, ok := dayNumber(b)
	if !ok {
		return 0, false
	}
	return int(nb - na), true
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) (string, error) {
	t, err := time.Parse(constants.DateFormat, date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat), nil
}

// DateOf formats t as a YYYY-MM-DD date in its own location.
func DateOf(t time.Time) string {
	return t.Format(constants.DateFormat)
}
