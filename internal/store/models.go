package store

import (
	"strconv"
	"time"
)

// Keys shared with the application layer. The names are the compatibility
// boundary between writers and must not change.
const (
	KeyDailySteps    = "daily_steps"
	KeyStepsDate     = "steps_date"
	KeyDeviceSteps   = "device_steps_at_midnight"
	KeyDailyGoal     = "steps_daily_goal"
	KeyServiceSteps  = "service_total_steps"
	KeyServiceDate   = "service_date"
	KeyServiceOffset = "service_step_offset"
	KeyTracking      = "tracking_enabled"
)

// Kind is the stored type of a pref value.
type Kind string

const (
	KindInt    Kind = "int"
	KindString Kind = "string"
	KindBool   Kind = "bool"
)

type Pref struct {
	Key       string
	Kind      Kind
	Value     string
	UpdatedAt time.Time
}

// Edit is one change applied by Apply. Remove deletes the key and ignores
// Kind and Value.
type Edit struct {
	Key    string
	Kind   Kind
	Value  string
	Remove bool
}

func IntEdit(key string, v int64) Edit {
	return Edit{Key: key, Kind: KindInt, Value: strconv.FormatInt(v, 10)}
}

func StringEdit(key, v string) Edit {
	return Edit{Key: key, Kind: KindString, Value: v}
}

func BoolEdit(key string, v bool) Edit {
	return Edit{Key: key, Kind: KindBool, Value: strconv.FormatBool(v)}
}

func RemoveEdit(key string) Edit {
	return Edit{Key: key, Remove: true}
}

// DaySteps is the recorded step total for one calendar day.
type DaySteps struct {
	Day       string // YYYY-MM-DD
	Steps     int64
	Goal      int64
	UpdatedAt time.Time
}

// Percent returns progress towards the goal, uncapped.
func (d DaySteps) Percent() float64 {
	if d.Goal <= 0 {
		return 0
	}
	return float64(d.Steps) * 100 / float64(d.Goal)
}
