package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sadopc/stride/internal/store"
)

func ToCSV(days []store.DaySteps, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	// Header
	if err := w.Write([]string{"Day", "Steps", "Goal", "Percent", "Goal Met"}); err != nil {
		return err
	}

	for _, d := range days {
		row := []string{
			d.Day,
			strconv.FormatInt(d.Steps, 10),
			strconv.FormatInt(d.Goal, 10),
			formatPercent(d.Percent()),
			strconv.FormatBool(goalMet(d)),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}

func goalMet(d store.DaySteps) bool {
	return d.Goal > 0 && d.Steps >= d.Goal
}
