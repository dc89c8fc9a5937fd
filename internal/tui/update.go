package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/stats"
	"github.com/julianstephens/habitsync/internal/tui/components/habitlist"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// Handle Add Habit State
	if m.state == StateAddHabit && !isBackground(msg) {
		if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
			m.state = StateToday
			return m, nil
		}

		form, cmd := m.form.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.form = f
		}
		cmds = append(cmds, cmd)

		switch m.form.State {
		case huh.StateCompleted:
			m.state = StateToday
			cmds = append(cmds, m.addHabit(*m.habitForm))
		case huh.StateAborted:
			m.state = StateToday
		}
		return m, tea.Batch(cmds...)
	}

	// Handle Delete Confirmation
	if m.state == StateConfirmDelete {
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch msg.String() {
			case "y", "Y":
				m.state = StateToday
				return m, m.deleteHabit(m.habitToDeleteID, m.habitToDeleteName)
			case "n", "N", "esc", "q":
				m.state = StateToday
				m.status = "Delete cancelled"
				return m, nil
			}
			return m, nil
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		// tabs, status line and help
		h := msg.Height - 6
		if h < 1 {
			h = 1
		}
		m.habitList.SetSize(msg.Width-4, h)
		m.statsModel.SetSize(msg.Width-4, h)
		m.achievementsModel.SetSize(msg.Width-4, h)
		return m, nil

	case dataMsg:
		m.online = msg.online
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.pending = msg.pending
		m.apply(msg)
		return m, nil

	case actionMsg:
		m.err = msg.err
		if msg.status != "" {
			m.status = msg.status
		}
		return m, nil

	case probeMsg:
		return m, tea.Batch(m.probe(), m.scheduleProbe())

	case habitlist.AddHabitMsg:
		m.habitForm = &HabitFormModel{
			Type:      models.CompletionBoolean,
			TimeOfDay: models.TimeOfDayAnytime,
			Target:    "1",
		}
		m.form = NewHabitForm(m.habitForm)
		m.state = StateAddHabit
		return m, m.form.Init()

	case habitlist.ToggleHabitMsg:
		return m, m.toggleHabit(msg.ID)

	case habitlist.DeleteHabitMsg:
		m.habitToDeleteID = msg.ID
		m.habitToDeleteName = msg.Name
		m.state = StateConfirmDelete
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Tab):
			m.state = (m.state + 1) % tabCount
			return m, nil
		case key.Matches(msg, m.keys.ShiftTab):
			m.state = (m.state - 1 + tabCount) % tabCount
			return m, nil
		case key.Matches(msg, m.keys.Sync):
			m.status = "Syncing..."
			return m, m.syncNow()
		case key.Matches(msg, m.keys.Refresh):
			return m, m.load()
		}
	}

	var cmd tea.Cmd
	switch m.state {
	case StateToday:
		m.habitList, cmd = m.habitList.Update(msg)
	case StateStats:
		m.statsModel, cmd = m.statsModel.Update(msg)
	case StateAchievements:
		m.achievementsModel, cmd = m.achievementsModel.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// apply pushes freshly loaded data into every view.
func (m *Model) apply(msg dataMsg) {
	now := time.Now().In(m.opts.Location)
	today := stats.DateOf(now)

	m.habitList.SetHabits(msg.habits, msg.completions, today)

	var week []stats.DayResult
	if from, err := stats.AddDays(today, -6); err == nil {
		week = stats.Range(msg.habits, msg.completions, from, today)
	}
	m.statsModel.SetSummary(stats.Summarize(msg.habits, msg.completions, now), week)

	unlocked := make(map[string]time.Time, len(msg.unlocks))
	for _, u := range msg.unlocks {
		unlocked[u.AchievementID] = u.UnlockedAt
	}
	m.achievementsModel.SetUnlocked(unlocked, m.opts.Location)

	m.warning = validationWarning(msg.habits, msg.completions)
}

// isBackground reports whether msg is produced by the model itself rather
// than by the focused component.
func isBackground(msg tea.Msg) bool {
	switch msg.(type) {
	case dataMsg, actionMsg, probeMsg, tea.WindowSizeMsg:
		return true
	}
	return false
}
