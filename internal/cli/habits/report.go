package habits

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/julianstephens/habitsync/internal/achievements"
	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/stats"
)

type TodayCmd struct{}

func (c *TodayCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	habits, err := ctx.Coordinator.Habits(ctx.Context())
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Println("No habits found.")
		return nil
	}
	completions, err := ctx.Coordinator.Completions(ctx.Context())
	if err != nil {
		return err
	}

	today := ctx.Today()
	idx := stats.NewIndex(completions)

	fmt.Printf("Habits for %s:\n\n", today)
	for _, h := range stats.ActiveHabitsOn(habits, today) {
		line := fmt.Sprintf("%s %s", checkbox(h, idx, today), label(h))
		if h.IsNumeric() {
			line += fmt.Sprintf("  %g/%g %s", idx.Total(h.ID, today), h.Target(), h.Unit)
		}
		fmt.Println(strings.TrimRight(line, " "))
	}

	day := stats.DayCompletion(habits, completions, today)
	fmt.Printf("\nRecorded: %d/%d (%s)\n", day.Completed, day.Active, formatPercent(day.Percentage))
	if day.IsPerfect() {
		fmt.Println("⭐ Perfect day!")
	}
	return nil
}

type StatsCmd struct {
	Habit string `help:"Show statistics for a specific habit only."`
	JSON  bool   `help:"Print statistics as JSON."`
}

func (c *StatsCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	habits, err := ctx.Coordinator.Habits(ctx.Context())
	if err != nil {
		return err
	}
	completions, err := ctx.Coordinator.Completions(ctx.Context())
	if err != nil {
		return err
	}
	now := ctx.Now()

	if c.Habit != "" {
		habit, err := ctx.FindHabit(c.Habit)
		if err != nil {
			return err
		}
		summary := stats.HabitStats(habit, completions, now)
		if c.JSON {
			return printJSON(summary)
		}
		printHabitSummary(summary)
		return nil
	}

	summary := stats.Summarize(habits, completions, now)
	if c.JSON {
		return printJSON(summary)
	}

	fmt.Printf("Habits:             %d\n", summary.TotalHabits)
	fmt.Printf("Completions:        %d\n", summary.TotalCompletions)
	fmt.Printf("Today:              %d/%d (%s)\n", summary.Today.Completed, summary.Today.Active, formatPercent(summary.Today.Percentage))
	fmt.Printf("Perfect days:       %d\n", summary.PerfectDays)
	fmt.Printf("Best current streak: %d\n", summary.BestCurrent)
	fmt.Printf("Longest streak:     %d\n", summary.LongestStreak)
	if len(summary.Habits) > 0 {
		fmt.Println()
		for _, hs := range summary.Habits {
			printHabitSummary(hs)
		}
	}
	return nil
}

func printHabitSummary(hs stats.HabitSummary) {
	fmt.Printf("%s\n", hs.Name)
	fmt.Printf("  Streak: %d current, %d longest\n", hs.Streak.Current, hs.Streak.Longest)
	fmt.Printf("  Completed %d of %d days (%s)\n", hs.DaysCompleted, hs.TrackedDays, formatPercent(hs.CompletionRate))
	if hs.TotalValue > 0 {
		fmt.Printf("  Total logged: %g\n", hs.TotalValue)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type CalendarCmd struct {
	Month string `arg:"" optional:"" help:"Month in YYYY-MM format (default: current month)."`
}

func (c *CalendarCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	year, month := ctx.Now().Year(), ctx.Now().Month()
	if c.Month != "" {
		var err error
		if year, month, err = stats.ParseMonth(c.Month); err != nil {
			return err
		}
	}

	habits, err := ctx.Coordinator.Habits(ctx.Context())
	if err != nil {
		return err
	}
	completions, err := ctx.Coordinator.Completions(ctx.Context())
	if err != nil {
		return err
	}
	days := stats.Month(habits, completions, year, month)
	today := ctx.Today()

	fmt.Printf("%s %d\n\n", month, year)
	fmt.Println(" Mo  Tu  We  Th  Fr  Sa  Su")

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7
	fmt.Print(strings.Repeat("    ", offset))
	for i, d := range days {
		fmt.Print(calendarCell(d, today))
		if (offset+i+1)%7 == 0 {
			fmt.Println()
		}
	}
	if (offset+len(days))%7 != 0 {
		fmt.Println()
	}
	fmt.Println("\n★ perfect  ● partial  · none")
	return nil
}

func calendarCell(d stats.DayResult, today string) string {
	mark := " "
	switch {
	case d.Date > today || d.Active == 0:
	case d.IsPerfect():
		mark = "★"
	case d.Completed > 0:
		mark = "●"
	default:
		mark = "·"
	}
	return fmt.Sprintf("%2s%s ", d.Date[8:], mark)
}

type AchievementsCmd struct {
	Evaluate bool `help:"Unlock any achievements that have been earned."`
}

func (c *AchievementsCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	if c.Evaluate {
		added, err := ctx.Coordinator.EvaluateAchievements(ctx.Context())
		if err := saved(err); err != nil {
			return err
		}
		if len(added) == 0 {
			fmt.Println("No new achievements.")
		}
		printUnlocked(added)
		fmt.Println()
	}

	unlocks, err := ctx.Coordinator.UnlockedAchievements(ctx.Context())
	if err != nil {
		return err
	}
	unlockedAt := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		unlockedAt[u.AchievementID] = u.UnlockedAt
	}

	all := achievements.All()
	fmt.Printf("Achievements (%d/%d unlocked):\n\n", len(unlockedAt), len(all))
	for _, d := range all {
		if at, ok := unlockedAt[d.ID]; ok {
			fmt.Printf("%s %s  %s (unlocked %s)\n", d.Icon, d.Name, d.Description, at.In(ctx.Config.Location()).Format("2006-01-02"))
		} else {
			fmt.Printf("🔒 %s  %s\n", d.Name, d.Description)
		}
	}
	return nil
}

func printUnlocked(ids []string) {
	for _, id := range ids {
		if d, ok := achievements.Lookup(id); ok {
			fmt.Printf("🏆 Achievement unlocked: %s %s\n", d.Icon, d.Name)
		}
	}
}
