package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordDay upserts the total for day. Steps only ever move up; goal always
// takes the latest value.
func (s *Store) RecordDay(day string, steps, goal int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO step_history (day, steps, goal, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET
			steps = MAX(step_history.steps, excluded.steps),
			goal = excluded.goal,
			updated_at = excluded.updated_at`,
		day, steps, goal, now,
	)
	if err != nil {
		return fmt.Errorf("record day %s: %w", day, err)
	}
	return nil
}

// GetDay returns the recorded total for day, or nil if nothing was recorded.
func (s *Store) GetDay(day string) (*DaySteps, error) {
	d := &DaySteps{}
	var updatedAt string
	err := s.db.QueryRow(
		`SELECT day, steps, goal, updated_at FROM step_history WHERE day = ?`, day,
	).Scan(&d.Day, &d.Steps, &d.Goal, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get day %s: %w", day, err)
	}
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return d, nil
}

// ListHistory returns recorded days in [from, to], oldest first. Empty bounds
// are open.
func (s *Store) ListHistory(from, to string) ([]DaySteps, error) {
	query := `SELECT day, steps, goal, updated_at FROM step_history WHERE 1=1`
	var args []any
	if from != "" {
		query += ` AND day >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND day <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY day`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var days []DaySteps
	for rows.Next() {
		var d DaySteps
		var updatedAt string
		if err := rows.Scan(&d.Day, &d.Steps, &d.Goal, &updatedAt); err != nil {
			return nil, err
		}
		d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		days = append(days, d)
	}
	return days, rows.Err()
}
