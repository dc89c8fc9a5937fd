package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitsync/internal/connectivity"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/stats"
	"github.com/julianstephens/habitsync/internal/syncer"
	"github.com/julianstephens/habitsync/internal/tui/components/habitlist"
	"github.com/julianstephens/habitsync/internal/tui/components/statsview"
	"github.com/julianstephens/habitsync/internal/validation"
)

type SessionState int

const (
	StateToday SessionState = iota
	StateStats
	StateAchievements
	StateAddHabit
	StateConfirmDelete
)

// tabCount is the number of states reachable with tab.
const tabCount = 3

type HabitFormModel struct {
	Name      string
	Type      models.CompletionType
	Target    string
	Unit      string
	TimeOfDay models.TimeOfDay
}

// Options configure the TUI.
type Options struct {
	// Watcher probes the backend on ProbeInterval. Nil disables probing.
	Watcher       *connectivity.Watcher
	ProbeInterval time.Duration
	Location      *time.Location
}

type Model struct {
	ctx     context.Context
	coord   *syncer.Coordinator
	watcher *connectivity.Watcher
	opts    Options

	state             SessionState
	keys              KeyMap
	help              help.Model
	habitList         habitlist.Model
	statsModel        statsview.Model
	achievementsModel statsview.Model
	form              *huh.Form
	habitForm         *HabitFormModel
	habitToDeleteID   string
	habitToDeleteName string

	online  bool
	pending int
	status  string
	warning string
	err     error

	quitting bool
	width    int
	height   int
}

func NewModel(ctx context.Context, coord *syncer.Coordinator, opts Options) Model {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return Model{
		ctx:               ctx,
		coord:             coord,
		watcher:           opts.Watcher,
		opts:              opts,
		state:             StateToday,
		keys:              DefaultKeyMap(),
		help:              help.New(),
		habitList:         habitlist.New(0, 0),
		statsModel:        statsview.New(statsview.ModeStats, 0, 0),
		achievementsModel: statsview.New(statsview.ModeAchievements, 0, 0),
		online:            coord.IsOnline(),
	}
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help, m.keys.Sync}
	if m.state == StateToday {
		keys = append(keys, m.keys.Add, m.keys.Toggle, m.keys.Delete)
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.ShiftTab, m.keys.Quit, m.keys.Help}
	navigation := []key.Binding{m.keys.Up, m.keys.Down}
	actions := []key.Binding{m.keys.Sync, m.keys.Refresh}
	if m.state == StateToday {
		actions = append(actions, m.keys.Add, m.keys.Toggle, m.keys.Delete)
	}
	return [][]key.Binding{global, navigation, actions}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.scheduleProbe())
}

func (m Model) today() string {
	return stats.DateOf(time.Now().In(m.opts.Location))
}

// dataMsg carries a fresh read of the coordinator's state.
type dataMsg struct {
	habits      []models.Habit
	completions []models.Completion
	unlocks     []models.AchievementUnlock
	pending     int
	online      bool
	err         error
}

// actionMsg reports the outcome of a user action.
type actionMsg struct {
	status string
	err    error
}

type probeMsg struct{}

func (m Model) load() tea.Cmd {
	ctx, coord := m.ctx, m.coord
	return func() tea.Msg {
		msg := dataMsg{online: coord.IsOnline()}
		if msg.habits, msg.err = coord.Habits(ctx); msg.err != nil {
			return msg
		}
		if msg.completions, msg.err = coord.Completions(ctx); msg.err != nil {
			return msg
		}
		if msg.unlocks, msg.err = coord.UnlockedAchievements(ctx); msg.err != nil {
			return msg
		}
		msg.pending, msg.err = coord.PendingCount(ctx)
		return msg
	}
}

// act runs fn off the UI goroutine, evaluates achievements and reloads. A
// change that was saved but is still queued is reported in the status line.
func (m Model) act(fn func(ctx context.Context) (string, error)) tea.Cmd {
	ctx, coord := m.ctx, m.coord
	run := func() tea.Msg {
		status, err := fn(ctx)
		queued := errors.Is(err, syncer.ErrQueued)
		if err != nil && !queued {
			return actionMsg{err: err}
		}
		added, err := coord.EvaluateAchievements(ctx)
		if errors.Is(err, syncer.ErrQueued) {
			queued, err = true, nil
		}
		if err != nil {
			return actionMsg{status: status, err: err}
		}
		if len(added) > 0 {
			status += fmt.Sprintf(" | 🏆 %d achievement(s) unlocked", len(added))
		}
		if queued {
			status += " | ⚠ queued, not synced yet"
		}
		return actionMsg{status: status}
	}
	return tea.Sequence(run, m.load())
}

func (m Model) scheduleProbe() tea.Cmd {
	if m.watcher == nil || m.opts.ProbeInterval <= 0 {
		return nil
	}
	return tea.Tick(m.opts.ProbeInterval, func(time.Time) tea.Msg { return probeMsg{} })
}

func (m Model) probe() tea.Cmd {
	ctx, w := m.ctx, m.watcher
	return tea.Sequence(func() tea.Msg {
		w.Check(ctx)
		return nil
	}, m.load())
}

func (m Model) syncNow() tea.Cmd {
	return m.act(func(ctx context.Context) (string, error) {
		if m.watcher != nil && !m.watcher.Check(ctx) {
			return "", fmt.Errorf("backend unreachable, changes stay queued")
		}
		result, err := m.coord.SyncOfflineData(ctx)
		if err != nil {
			return "", err
		}
		if result.DeadLettered > 0 {
			return fmt.Sprintf("Synced %d change(s), %d failed permanently", result.Replayed, result.DeadLettered), nil
		}
		return fmt.Sprintf("Synced %d change(s)", result.Replayed), nil
	})
}

func (m Model) toggleHabit(id string) tea.Cmd {
	today := m.today()
	return m.act(func(ctx context.Context) (string, error) {
		result, err := m.coord.ToggleCompletion(ctx, id, today, nil)
		if err != nil && !errors.Is(err, syncer.ErrQueued) {
			return "", err
		}
		if result.Completion != nil {
			return "Marked done", err
		}
		return "Unmarked", err
	})
}

func (m Model) deleteHabit(id, name string) tea.Cmd {
	return m.act(func(ctx context.Context) (string, error) {
		err := m.coord.DeleteHabit(ctx, id)
		if err != nil && !errors.Is(err, syncer.ErrQueued) {
			return "", err
		}
		return fmt.Sprintf("Deleted %q", name), err
	})
}

func (m Model) addHabit(fm HabitFormModel) tea.Cmd {
	return m.act(func(ctx context.Context) (string, error) {
		h := models.Habit{
			Name:      fm.Name,
			Type:      fm.Type,
			TimeOfDay: fm.TimeOfDay,
		}
		if fm.Type == models.CompletionNumeric {
			target, err := strconv.ParseFloat(strings.TrimSpace(fm.Target), 64)
			if err != nil {
				return "", fmt.Errorf("invalid target %q", fm.Target)
			}
			h.TargetValue = &target
			h.Unit = strings.TrimSpace(fm.Unit)
		}
		created, err := m.coord.AddHabit(ctx, h)
		if err != nil && !errors.Is(err, syncer.ErrQueued) {
			return "", err
		}
		return fmt.Sprintf("Added %q", created.Name), err
	})
}

// NewHabitForm creates a new form for adding habits
func NewHabitForm(fm *HabitFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Habit Name").
				Value(&fm.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("habit name cannot be empty")
					}
					return nil
				}),
			huh.NewSelect[models.CompletionType]().
				Title("Tracking").
				Options(
					huh.NewOption("Done / not done", models.CompletionBoolean),
					huh.NewOption("Numeric target", models.CompletionNumeric),
				).
				Value(&fm.Type),
			huh.NewSelect[models.TimeOfDay]().
				Title("Time of Day").
				Options(
					huh.NewOption("Any time", models.TimeOfDayAnytime),
					huh.NewOption("Morning", models.TimeOfDayMorning),
					huh.NewOption("Afternoon", models.TimeOfDayAfternoon),
					huh.NewOption("Evening", models.TimeOfDayEvening),
				).
				Value(&fm.TimeOfDay),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Daily Target").
				Value(&fm.Target).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil || v <= 0 {
						return fmt.Errorf("target must be a positive number")
					}
					return nil
				}),
			huh.NewInput().
				Title("Unit").
				Placeholder("glasses, pages, minutes").
				Value(&fm.Unit),
		).WithHideFunc(func() bool { return fm.Type != models.CompletionNumeric }),
	).WithTheme(huh.ThemeDracula())
}

// validationWarning summarizes local data conflicts, or "" when there are none.
func validationWarning(habits []models.Habit, completions []models.Completion) string {
	result := validation.New().Validate(habits, completions, nil)
	if !result.HasConflicts() {
		return ""
	}
	return fmt.Sprintf("⚠ %d validation warning(s), run 'doctor'", len(result.Conflicts))
}
