package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/stride/internal/steps"
	"github.com/sadopc/stride/internal/store"
)

type reportMode int

const (
	reportDaily reportMode = iota
	reportWeekly
)

type reportsModel struct {
	store  *store.Store
	width  int
	height int
	now    func() time.Time

	mode   reportMode
	days   []store.DaySteps
	offset int // weeks or 7-day blocks back from today (0 = current)

	chart barchart.Model
}

func newReportsModel(s *store.Store) reportsModel {
	return reportsModel{
		store: s,
		now:   time.Now,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	days []store.DaySteps
}

func (r reportsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		from, to := r.dateRange()
		days, err := r.store.ListHistory(steps.DayOf(from), steps.DayOf(to.AddDate(0, 0, -1)))
		if err != nil {
			return statusMsg{text: fmt.Sprintf("History error: %v", err), isError: true}
		}
		return reportsDataMsg{days: days}
	}
}

// dateRange returns [from, to) in local time.
func (r reportsModel) dateRange() (time.Time, time.Time) {
	today := midnight(r.now())

	switch r.mode {
	case reportWeekly:
		// Start of current week (Monday)
		weekday := today.Weekday()
		if weekday == time.Sunday {
			weekday = 7
		}
		startOfWeek := today.AddDate(0, 0, -int(weekday-time.Monday))
		startOfWeek = startOfWeek.AddDate(0, 0, -7*r.offset)
		return startOfWeek, startOfWeek.AddDate(0, 0, 7)
	default:
		// Daily: last 7 days
		end := today.AddDate(0, 0, 1-7*r.offset)
		start := end.AddDate(0, 0, -7)
		return start, end
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.days = msg.days
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Enter):
			if r.mode == reportDaily {
				r.mode = reportWeekly
			} else {
				r.mode = reportDaily
			}
			r.offset = 0
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r *reportsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	byDay := make(map[string]store.DaySteps, len(r.days))
	for _, d := range r.days {
		byDay[d.Day] = d
	}

	from, to := r.dateRange()
	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		ds := byDay[steps.DayOf(d)]
		style := lipgloss.NewStyle().Foreground(colorPrimary)
		if ds.Goal > 0 && ds.Steps >= ds.Goal {
			style = lipgloss.NewStyle().Foreground(colorSuccess)
		} else if ds.Steps == 0 {
			style = lipgloss.NewStyle().Foreground(colorSubtle)
		}
		bars = append(bars, barchart.BarData{
			Label: d.Format("Mon 02"),
			Values: []barchart.BarValue{{
				Name:  "steps",
				Value: float64(ds.Steps),
				Style: style,
			}},
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

type historyTotals struct {
	total   int64
	average int64
	met     int
}

func (r reportsModel) totals() historyTotals {
	var t historyTotals
	for _, d := range r.days {
		t.total += d.Steps
		if d.Goal > 0 && d.Steps >= d.Goal {
			t.met++
		}
	}
	if len(r.days) > 0 {
		t.average = t.total / int64(len(r.days))
	}
	return t
}

func (r reportsModel) view() string {
	w := r.width - 4

	dailyTab := inactiveTabStyle.Render("7 Days")
	weeklyTab := inactiveTabStyle.Render("Week")
	if r.mode == reportDaily {
		dailyTab = activeTabStyle.Render("7 Days")
	} else {
		weeklyTab = activeTabStyle.Render("Week")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, dailyTab, weeklyTab)

	from, to := r.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s – %s", from.Format("Jan 02"), to.AddDate(0, 0, -1).Format("Jan 02, 2006")))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("History"), "  ", modeTabs, "  ", dateLabel,
	)

	t := r.totals()
	summary := fmt.Sprintf("  Total %s  ·  Avg %s/day  ·  Goal met %d of %d days",
		highlightStyle.Render(formatSteps(t.total)),
		highlightStyle.Render(formatSteps(t.average)),
		t.met, len(r.days))

	nav := mutedStyle.Render("  ←/→: navigate  enter: switch mode")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", summary, "", r.renderTable(w), "", nav,
		),
	)
}

func (r reportsModel) renderTable(w int) string {
	if len(r.days) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-12s %10s %10s %7s", "Day", "Steps", "Goal", "%")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 42))))

	for _, d := range r.days {
		row := fmt.Sprintf("  %-12s %10s %10s %6.0f%%",
			d.Day, formatSteps(d.Steps), formatSteps(d.Goal), d.Percent())
		if d.Goal > 0 && d.Steps >= d.Goal {
			row = successStyle.Render(row)
		}
		rows = append(rows, row)
	}

	return strings.Join(rows, "\n")
}
