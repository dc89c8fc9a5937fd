package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string

	switch m.state {
	case StateToday:
		content = docStyle.Render(m.habitList.View())
	case StateStats:
		content = docStyle.Render(m.statsModel.View())
	case StateAchievements:
		content = docStyle.Render(m.achievementsModel.View())
	case StateAddHabit:
		content = docStyle.Render(m.form.View())
	case StateConfirmDelete:
		content = m.viewConfirmDelete()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		content,
		m.viewStatus(),
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	var tabs []string
	for i, title := range []string{"Today", "Stats", "Achievements"} {
		active := m.state == SessionState(i) ||
			(i == int(StateToday) && (m.state == StateAddHabit || m.state == StateConfirmDelete))
		if active {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(title))
		}
	}
	tabs = append(tabs, m.viewBadge())
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewBadge() string {
	if m.online {
		if m.pending > 0 {
			return onlineStyle.Render(fmt.Sprintf("● online (%d pending)", m.pending))
		}
		return onlineStyle.Render("● online")
	}
	if m.pending > 0 {
		return offlineStyle.Render(fmt.Sprintf("○ offline (%d queued)", m.pending))
	}
	return offlineStyle.Render("○ offline")
}

func (m Model) viewStatus() string {
	switch {
	case m.err != nil:
		return statusStyle.Render(dangerStyle.Render("Error: " + m.err.Error()))
	case m.warning != "":
		line := m.warning
		if m.status != "" {
			line = m.status + " | " + line
		}
		return statusStyle.Render(warningStyle.Render(line))
	default:
		return statusStyle.Render(m.status)
	}
}

func (m Model) viewConfirmDelete() string {
	height := m.height - 4
	if height < 1 {
		height = 1
	}
	return lipgloss.Place(m.width, height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center,
			dangerStyle.Render(fmt.Sprintf("Delete habit %q?", m.habitToDeleteName)),
			"",
			"Its completion history is removed too.",
			"",
			"[y] Yes   [n] No",
		),
	)
}
