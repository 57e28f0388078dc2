package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/stride/internal/store"
)

const maxGoal = 1_000_000

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	prefs      []store.Pref
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	dailyGoal *string
}

func newSettingsModel(s *store.Store) settingsModel {
	dg := ""
	return settingsModel{
		store:     s,
		dailyGoal: &dg,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	prefs []store.Pref
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		prefs, err := s.store.All()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Settings error: %v", err), isError: true}
		}
		return settingsDataMsg{prefs: prefs}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.prefs = msg.prefs
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	goal, err := s.store.GetInt(store.KeyDailyGoal)
	if err != nil || goal <= 0 {
		goal = store.DefaultGoal
	}
	*s.dailyGoal = strconv.FormatInt(goal, 10)

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Daily step goal").
				Description("Steps to reach each day").
				Value(s.dailyGoal).
				Validate(validateGoal),
		).Title("Goal"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		if err := s.saveSettings(); err != nil {
			return s, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Save error: %v", err), isError: true}
			}
		}
		return s, tea.Batch(s.refresh(), func() tea.Msg {
			return statusMsg{text: "Goal set to " + formatSteps(parseGoal(*s.dailyGoal))}
		})
	}

	return s, cmd
}

func (s settingsModel) saveSettings() error {
	if err := validateGoal(*s.dailyGoal); err != nil {
		return err
	}
	return s.store.PutInt(store.KeyDailyGoal, parseGoal(*s.dailyGoal))
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	rows := []string{title, ""}
	for _, p := range s.prefs {
		label := lipgloss.NewStyle().Width(28).Render(p.Key)
		value := highlightStyle.Render(formatPrefValue(p))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("Press enter to edit the daily goal"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatPrefValue(p store.Pref) string {
	switch {
	case p.Key == store.KeyDailyGoal && p.Kind == store.KindInt,
		p.Key == store.KeyDailySteps && p.Kind == store.KindInt:
		if n, err := strconv.ParseInt(p.Value, 10, 64); err == nil {
			return formatSteps(n) + " steps"
		}
	case p.Kind == store.KindBool:
		if b, err := strconv.ParseBool(p.Value); err == nil {
			if b {
				return "on"
			}
			return "off"
		}
	}
	return p.Value
}

func validateGoal(s string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return errors.New("enter a whole number of steps")
	}
	if n <= 0 || n > maxGoal {
		return fmt.Errorf("goal must be between 1 and %s", formatSteps(maxGoal))
	}
	return nil
}

func parseGoal(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}
