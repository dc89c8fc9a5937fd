package habits

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/stats"
	"github.com/julianstephens/habitsync/internal/syncer"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits."`
	Edit   HabitEditCmd   `cmd:"" help:"Edit an existing habit."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit and its completions."`
	Toggle HabitToggleCmd `cmd:"" help:"Mark or unmark a habit as done for a day."`
	Log    HabitLogCmd    `cmd:"" help:"Log progress on a numeric habit."`
}

type HabitAddCmd struct {
	Name      string   `arg:"" help:"Habit name."`
	Icon      string   `help:"Display icon."`
	Color     string   `help:"Display color."`
	Numeric   bool     `help:"Track a numeric amount instead of done/not done."`
	Target    float64  `help:"Daily target for numeric habits." default:"1"`
	Unit      string   `help:"Unit of the numeric target (e.g. glasses, pages)."`
	TimeOfDay string   `help:"Preferred time of day." enum:",morning,afternoon,evening,anytime" default:""`
	Reminder  []string `help:"Reminder time in HH:MM format (repeatable)."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	if _, err := ctx.FindHabit(c.Name); err == nil {
		return fmt.Errorf("habit with name %q already exists", c.Name)
	}

	habit := models.Habit{
		Name:             c.Name,
		Icon:             c.Icon,
		Color:            c.Color,
		Type:             models.CompletionBoolean,
		TimeOfDay:        models.TimeOfDay(c.TimeOfDay),
		ReminderTimes:    c.Reminder,
		RemindersEnabled: len(c.Reminder) > 0,
	}
	if c.Numeric {
		target := c.Target
		habit.Type = models.CompletionNumeric
		habit.TargetValue = &target
		habit.Unit = c.Unit
	}

	created, err := ctx.Coordinator.AddHabit(ctx.Context(), habit)
	if err := saved(err); err != nil {
		return err
	}

	fmt.Printf("✓ Added habit: %s\n", created.Name)
	printQueued(created.ID)
	return evaluate(ctx)
}

type HabitListCmd struct{}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
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

	for _, h := range habits {
		fmt.Printf("%s  %s%s\n", shortID(h.ID), label(h), describe(h))
	}
	return nil
}

type HabitEditCmd struct {
	Habit     string   `arg:"" help:"Habit name or id."`
	Name      string   `help:"New name."`
	Icon      string   `help:"New icon."`
	Color     string   `help:"New color."`
	Target    float64  `help:"New daily target (numeric habits only)."`
	Unit      string   `help:"New unit (numeric habits only)."`
	TimeOfDay string   `help:"New preferred time of day." enum:",morning,afternoon,evening,anytime" default:""`
	Reminder  []string `help:"Replace reminder times (HH:MM, repeatable)."`
	Reminders string   `help:"Turn reminders on or off." enum:",on,off" default:""`
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	habit, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}

	if c.Name != "" {
		if other, err := ctx.FindHabit(c.Name); err == nil && other.ID != habit.ID {
			return fmt.Errorf("habit with name %q already exists", c.Name)
		}
		habit.Name = c.Name
	}
	if c.Icon != "" {
		habit.Icon = c.Icon
	}
	if c.Color != "" {
		habit.Color = c.Color
	}
	if c.Target != 0 || c.Unit != "" {
		if !habit.IsNumeric() {
			return errors.New("target and unit only apply to numeric habits")
		}
		if c.Target != 0 {
			target := c.Target
			habit.TargetValue = &target
		}
		if c.Unit != "" {
			habit.Unit = c.Unit
		}
	}
	if c.TimeOfDay != "" {
		habit.TimeOfDay = models.TimeOfDay(c.TimeOfDay)
	}
	if len(c.Reminder) > 0 {
		habit.ReminderTimes = c.Reminder
		habit.RemindersEnabled = true
	}
	switch c.Reminders {
	case "on":
		habit.RemindersEnabled = true
	case "off":
		habit.RemindersEnabled = false
	}

	updated, err := ctx.Coordinator.UpdateHabit(ctx.Context(), habit)
	if err := saved(err); err != nil {
		return err
	}

	fmt.Printf("✓ Updated habit: %s\n", updated.Name)
	printQueued(updated.ID)
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	habit, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}

	if err := saved(ctx.Coordinator.DeleteHabit(ctx.Context(), habit.ID)); err != nil {
		return err
	}

	fmt.Printf("✓ Deleted habit: %s\n", habit.Name)
	return nil
}

type HabitToggleCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	Date  string `help:"Date in YYYY-MM-DD format (default: today)." default:""`
}

func (c *HabitToggleCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	habit, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}
	day, err := ctx.ResolveDate(c.Date)
	if err != nil {
		return err
	}

	result, err := ctx.Coordinator.ToggleCompletion(ctx.Context(), habit.ID, day, nil)
	if err := saved(err); err != nil {
		return err
	}

	if result.Completion != nil {
		fmt.Printf("Marked habit %q for %s\n", habit.Name, day)
	} else {
		fmt.Printf("Unmarked habit %q for %s\n", habit.Name, day)
	}
	return evaluate(ctx)
}

type HabitLogCmd struct {
	Habit string  `arg:"" help:"Habit name or id."`
	Value float64 `arg:"" optional:"" help:"Amount to add (default: 1)."`
	Date  string  `help:"Date in YYYY-MM-DD format (default: today)." default:""`
}

func (c *HabitLogCmd) Run(ctx *cli.Context) error {
	if err := ctx.Connect(); err != nil {
		return err
	}

	habit, err := ctx.FindHabit(c.Habit)
	if err != nil {
		return err
	}
	if !habit.IsNumeric() {
		return fmt.Errorf("habit %q is not numeric, use 'habit toggle' instead", habit.Name)
	}
	day, err := ctx.ResolveDate(c.Date)
	if err != nil {
		return err
	}

	var value *float64
	if c.Value != 0 {
		value = &c.Value
	}
	result, err := ctx.Coordinator.ToggleCompletion(ctx.Context(), habit.ID, day, value)
	if err := saved(err); err != nil {
		if errors.Is(err, syncer.ErrInvalidValue) {
			return fmt.Errorf("cannot log %q: %w", habit.Name, err)
		}
		return err
	}

	completions, err := ctx.Coordinator.Completions(ctx.Context())
	if err != nil {
		return err
	}
	total := stats.NewIndex(completions).Total(habit.ID, day)
	fmt.Printf("Logged %g %s for %q on %s (%g/%g)\n",
		result.Completion.Amount(), habit.Unit, habit.Name, day, total, habit.Target())
	return evaluate(ctx)
}

// evaluate unlocks newly earned achievements after a completion change.
func evaluate(ctx *cli.Context) error {
	added, err := ctx.Coordinator.EvaluateAchievements(ctx.Context())
	if err := saved(err); err != nil {
		return err
	}
	printUnlocked(added)
	return nil
}

// saved passes err through unless it only reports that a change made online
// is still queued, which is printed as a warning instead.
func saved(err error) error {
	if errors.Is(err, syncer.ErrQueued) {
		fmt.Fprintf(os.Stderr, "⚠ %v\n", err)
		return nil
	}
	return err
}

func printQueued(id string) {
	if models.IsProvisional(id) {
		fmt.Println("  (offline: change queued and will sync when the backend is reachable)")
	}
}

func shortID(id string) string {
	id = models.CanonicalID(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func label(h models.Habit) string {
	if h.Icon != "" {
		return h.Icon + " " + h.Name
	}
	return h.Name
}

func describe(h models.Habit) string {
	var parts []string
	if h.IsNumeric() {
		target := fmt.Sprintf("target %g", h.Target())
		if h.Unit != "" {
			target += " " + h.Unit
		}
		parts = append(parts, target)
	}
	if h.TimeOfDay != "" {
		parts = append(parts, string(h.TimeOfDay))
	}
	if h.RemindersEnabled && len(h.ReminderTimes) > 0 {
		parts = append(parts, "reminders "+strings.Join(h.ReminderTimes, ","))
	}
	if models.IsProvisional(h.ID) {
		parts = append(parts, "not synced")
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// checkbox renders the completion state of a habit on a day.
func checkbox(h models.Habit, idx *stats.Index, date string) string {
	if idx.IsComplete(h, date) {
		return "[x]"
	}
	if h.IsNumeric() && idx.Total(h.ID, date) > 0 {
		return "[~]"
	}
	return "[ ]"
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}
