package steps

import (
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/stride/internal/store"
)

// ResetStoredDay is the day check for writers that keep no baseline of their
// own, such as the dashboard. When steps_date is not now's day it finalizes
// the old day into h (if h is not nil) and zeroes the shared count. It
// reports whether a reset happened and never touches the service keys.
func ResetStoredDay(p Prefs, h History, now time.Time) (bool, error) {
	today := DayOf(now)
	storedDate, err := p.GetString(store.KeyStepsDate)
	switch {
	case err == nil:
		if storedDate == today {
			return false, nil
		}
	case errors.Is(err, store.ErrAbsent), errors.Is(err, store.ErrTypeMismatch):
		storedDate = ""
	default:
		return false, err
	}

	if storedDate != "" && h != nil {
		if stored, err := p.GetInt(store.KeyDailySteps); err == nil && stored > 0 {
			if err := h.RecordDay(storedDate, stored, storedGoal(p)); err != nil {
				return false, fmt.Errorf("finalize %s: %w", storedDate, err)
			}
		}
	}

	err = p.Apply(
		store.IntEdit(store.KeyDailySteps, 0),
		store.StringEdit(store.KeyStepsDate, today),
		store.RemoveEdit(store.KeyDeviceSteps),
	)
	if err != nil {
		return false, fmt.Errorf("reset day: %w", err)
	}
	return true, nil
}

// StoredToday returns the shared count if it belongs to now's day, else 0.
func StoredToday(p Prefs, now time.Time) (int64, error) {
	d, err := p.GetString(store.KeyStepsDate)
	if errors.Is(err, store.ErrAbsent) || errors.Is(err, store.ErrTypeMismatch) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if d != DayOf(now) {
		return 0, nil
	}
	n, err := p.GetInt(store.KeyDailySteps)
	if errors.Is(err, store.ErrAbsent) || errors.Is(err, store.ErrTypeMismatch) {
		return 0, nil
	}
	return n, err
}

func storedGoal(p Prefs) int64 {
	g, err := p.GetInt(store.KeyDailyGoal)
	if err != nil || g <= 0 {
		return store.DefaultGoal
	}
	return g
}
