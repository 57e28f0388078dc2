// Package steps turns raw pedometer readings into a single "steps today"
// value kept in the shared store.
//
// A Reconciler holds the per-process baseline for the current day and merges
// it with whatever other writers have published under the same keys. Within
// one calendar day the value it persists never decreases.
package steps

import "time"

// DayLayout is the on-store format of every date key.
const DayLayout = "2006-01-02"

// DayOf returns t's calendar day in t's own location.
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}

// Trigger names the lifecycle signal that asked for a day check.
type Trigger string

const (
	TriggerAlarm      Trigger = "alarm"
	TriggerPoll       Trigger = "poll"
	TriggerForeground Trigger = "foreground"
	TriggerReading    Trigger = "reading"
)

// Phase is the per-day state of the reconciler.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseBaselined
	PhaseAccumulating
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseBaselined:
		return "baselined"
	case PhaseAccumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}
