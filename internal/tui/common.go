package tui

import (
	"strconv"
	"time"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewHistory
	viewSettings
)

var viewNames = []string{"Today", "History", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

type dayCheckedMsg struct {
	rolled bool
}

type trackingMsg struct {
	on bool
}

// --- Helpers ---

// formatSteps renders n with thousands separators.
func formatSteps(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

func percentOf(n, goal int64) float64 {
	if goal <= 0 {
		return 0
	}
	return float64(n) * 100 / float64(goal)
}

// midnight returns the start of t's local day.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
