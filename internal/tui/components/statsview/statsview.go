package statsview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitsync/internal/achievements"
	"github.com/julianstephens/habitsync/internal/stats"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(22)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	perfectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))
)

// Mode selects what the view renders.
type Mode int

const (
	ModeStats Mode = iota
	ModeAchievements
)

type Model struct {
	viewport viewport.Model
	mode     Mode

	summary  *stats.Summary
	week     []stats.DayResult
	unlocked map[string]time.Time
	loc      *time.Location
}

func New(mode Mode, width, height int) Model {
	return Model{
		viewport: viewport.New(width, height),
		mode:     mode,
		loc:      time.Local,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.Render()
}

// SetSummary sets the statistics and the last days of completion history.
func (m *Model) SetSummary(summary stats.Summary, week []stats.DayResult) {
	m.summary = &summary
	m.week = week
	m.Render()
}

// SetUnlocked sets the unlock times by achievement id.
func (m *Model) SetUnlocked(unlocked map[string]time.Time, loc *time.Location) {
	m.unlocked = unlocked
	if loc != nil {
		m.loc = loc
	}
	m.Render()
}

func (m *Model) Render() {
	switch m.mode {
	case ModeAchievements:
		m.viewport.SetContent(m.renderAchievements())
	default:
		m.viewport.SetContent(m.renderStats())
	}
}

func (m *Model) renderStats() string {
	if m.summary == nil {
		return "No statistics loaded."
	}
	s := m.summary

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("Habits", fmt.Sprint(s.TotalHabits))
	row("Completions", fmt.Sprint(s.TotalCompletions))
	row("Today", fmt.Sprintf("%d/%d (%.0f%%)", s.Today.Completed, s.Today.Active, s.Today.Percentage))
	row("Perfect days", fmt.Sprint(s.PerfectDays))
	row("Best current streak", fmt.Sprint(s.BestCurrent))
	row("Longest streak", fmt.Sprint(s.LongestStreak))

	if len(m.week) > 0 {
		b.WriteString("\n")
		for _, d := range m.week {
			bar := strings.Repeat("█", int(d.Percentage/10)) + strings.Repeat("░", 10-int(d.Percentage/10))
			line := fmt.Sprintf("%s %s %3.0f%%", d.Date[5:], bar, d.Percentage)
			if d.IsPerfect() {
				line = perfectStyle.Render(line + " ★")
			}
			b.WriteString(line + "\n")
		}
	}

	if len(s.Habits) > 0 {
		b.WriteString("\n")
		for _, hs := range s.Habits {
			b.WriteString(nameStyle.Render(hs.Name) + "\n")
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  streak %d (best %d) | %d/%d days | %.0f%%",
				hs.Streak.Current, hs.Streak.Longest, hs.DaysCompleted, hs.TrackedDays, hs.CompletionRate)) + "\n")
		}
	}
	return b.String()
}

func (m *Model) renderAchievements() string {
	all := achievements.All()

	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d unlocked\n\n", len(m.unlocked), len(all))
	for _, d := range all {
		if at, ok := m.unlocked[d.ID]; ok {
			b.WriteString(nameStyle.Render(d.Icon+" "+d.Name) + "\n")
			b.WriteString(mutedStyle.Render("  "+d.Description+" | unlocked "+at.In(m.loc).Format("2006-01-02")) + "\n")
		} else {
			b.WriteString(mutedStyle.Render("🔒 "+d.Name) + "\n")
			b.WriteString(mutedStyle.Render("  "+d.Description) + "\n")
		}
	}
	return b.String()
}
