package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/stride/internal/store"
)

type jsonExport struct {
	ExportedAt string    `json:"exported_at"`
	Count      int       `json:"count"`
	TotalSteps int64     `json:"total_steps"`
	DaysMet    int       `json:"days_met"`
	Days       []jsonDay `json:"days"`
}

type jsonDay struct {
	Day       string  `json:"day"`
	Steps     int64   `json:"steps"`
	Goal      int64   `json:"goal"`
	Percent   float64 `json:"percent"`
	GoalMet   bool    `json:"goal_met"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

func ToJSON(days []store.DaySteps, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(days),
	}

	for _, d := range days {
		updated := ""
		if !d.UpdatedAt.IsZero() {
			updated = d.UpdatedAt.Local().Format(time.RFC3339)
		}
		met := goalMet(d)
		if met {
			export.DaysMet++
		}
		export.TotalSteps += d.Steps
		export.Days = append(export.Days, jsonDay{
			Day:       d.Day,
			Steps:     d.Steps,
			Goal:      d.Goal,
			Percent:   d.Percent(),
			GoalMet:   met,
			UpdatedAt: updated,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}

// Filename returns the default export file name for format ("csv" or
// "json") at t.
func Filename(format string, t time.Time) string {
	return fmt.Sprintf("stride-export-%s.%s", t.Format("20060102-150405"), format)
}
