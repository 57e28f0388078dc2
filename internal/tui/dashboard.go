package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/stride/internal/steps"
	"github.com/sadopc/stride/internal/store"
)

type dashboardModel struct {
	store  *store.Store
	width  int
	height int

	date     string
	count    int64
	goal     int64
	tracking bool
	week     []store.DaySteps

	bar progress.Model
}

func newDashboardModel(s *store.Store) dashboardModel {
	return dashboardModel{
		store: s,
		goal:  store.DefaultGoal,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
	d.bar.Width = max(w-12, 10)
}

type dashboardDataMsg struct {
	date     string
	count    int64
	goal     int64
	tracking bool
	week     []store.DaySteps
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		now := time.Now()
		count, err := steps.StoredToday(d.store, now)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Read error: %v", err), isError: true}
		}

		goal, err := d.store.GetInt(store.KeyDailyGoal)
		if err != nil || goal <= 0 {
			goal = store.DefaultGoal
		}

		tracking, _ := d.store.GetBool(store.KeyTracking)

		from := steps.DayOf(midnight(now).AddDate(0, 0, -6))
		week, _ := d.store.ListHistory(from, steps.DayOf(now))

		return dashboardDataMsg{
			date:     steps.DayOf(now),
			count:    count,
			goal:     goal,
			tracking: tracking,
			week:     week,
		}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.date = msg.date
		d.count = msg.count
		d.goal = msg.goal
		d.tracking = msg.tracking
		d.week = msg.week
		return d, nil
	}
	return d, nil
}

func (d dashboardModel) percent() float64 {
	return percentOf(d.count, d.goal)
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4
	return lipgloss.JoinVertical(lipgloss.Left,
		d.renderCountPanel(contentWidth),
		d.renderWeekPanel(contentWidth),
	)
}

func (d dashboardModel) renderCountPanel(w int) string {
	style := countStyle
	if d.goal > 0 && d.count >= d.goal {
		style = countMetStyle
	}
	count := style.Width(w - 6).Render(formatSteps(d.count))
	goal := mutedStyle.Width(w - 6).Align(lipgloss.Center).
		Render(fmt.Sprintf("of %s steps  ·  %.0f%%", formatSteps(d.goal), d.percent()))

	bar := d.bar.ViewAs(min(d.percent()/100, 1))

	var indicator, hint string
	if d.tracking {
		indicator = successStyle.Render("●  TRACKING")
		hint = mutedStyle.Render("Press x to stop tracking")
	} else {
		indicator = warningStyle.Render("■  NOT TRACKING")
		hint = mutedStyle.Render("Press s to start tracking")
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		subtitleStyle.Render(d.date),
		count,
		goal,
		"",
		bar,
		"",
		indicator,
		hint,
	)
	if d.tracking {
		return activePanelStyle.Width(w).Render(content)
	}
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderWeekPanel(w int) string {
	title := titleStyle.Render("Last 7 Days")

	byDay := make(map[string]store.DaySteps, len(d.week))
	for _, ds := range d.week {
		byDay[ds.Day] = ds
	}

	today, err := time.ParseInLocation(steps.DayLayout, d.date, time.Local)
	if err != nil {
		today = midnight(time.Now())
	}

	rows := []string{title}
	for i := 6; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		dayKey := steps.DayOf(day)
		ds := byDay[dayKey]
		n, goal := ds.Steps, ds.Goal
		if dayKey == d.date {
			n, goal = max(n, d.count), d.goal
		}
		if goal <= 0 {
			goal = d.goal
		}

		mark := " "
		if goal > 0 && n >= goal {
			mark = successStyle.Render("✓")
		}
		label := day.Format("Mon 02")
		if dayKey == d.date {
			label = highlightStyle.Render(label)
		}
		rows = append(rows, fmt.Sprintf("  %s %s  %8s  %4.0f%%",
			mark, label, formatSteps(n), percentOf(n, goal)))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
