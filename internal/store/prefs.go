package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrAbsent is returned when a key has never been written or was removed.
	ErrAbsent = errors.New("pref absent")
	// ErrTypeMismatch is returned when a key holds a different kind than the
	// accessor asked for, or its value does not parse as that kind.
	ErrTypeMismatch = errors.New("pref type mismatch")
)

func (s *Store) get(key string, want Kind) (string, error) {
	var kind Kind
	var value string
	err := s.db.QueryRow(`SELECT kind, value FROM prefs WHERE key = ?`, key).Scan(&kind, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get pref %q: %w", key, ErrAbsent)
	}
	if err != nil {
		return "", fmt.Errorf("get pref %q: %w", key, err)
	}
	if kind != want {
		return "", fmt.Errorf("get pref %q: stored %s, want %s: %w", key, kind, want, ErrTypeMismatch)
	}
	return value, nil
}

func (s *Store) GetInt(key string) (int64, error) {
	v, err := s.get(key, KindInt)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("get pref %q: %q is not an int: %w", key, v, ErrTypeMismatch)
	}
	return n, nil
}

func (s *Store) GetString(key string) (string, error) {
	return s.get(key, KindString)
}

func (s *Store) GetBool(key string) (bool, error) {
	v, err := s.get(key, KindBool)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("get pref %q: %q is not a bool: %w", key, v, ErrTypeMismatch)
	}
	return b, nil
}

func (s *Store) PutInt(key string, v int64) error {
	return s.Apply(IntEdit(key, v))
}

func (s *Store) PutString(key, v string) error {
	return s.Apply(StringEdit(key, v))
}

func (s *Store) PutBool(key string, v bool) error {
	return s.Apply(BoolEdit(key, v))
}

func (s *Store) Remove(key string) error {
	return s.Apply(RemoveEdit(key))
}

// Apply commits all edits in a single transaction. Readers in other
// processes see either none or all of them.
func (s *Store) Apply(edits ...Edit) error {
	if len(edits) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range edits {
		if e.Remove {
			if _, err := tx.Exec(`DELETE FROM prefs WHERE key = ?`, e.Key); err != nil {
				return fmt.Errorf("remove pref %q: %w", e.Key, err)
			}
			continue
		}
		_, err := tx.Exec(
			`INSERT INTO prefs (key, kind, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`,
			e.Key, e.Kind, e.Value, now,
		)
		if err != nil {
			return fmt.Errorf("put pref %q: %w", e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply: %w", err)
	}
	return nil
}

func (s *Store) All() ([]Pref, error) {
	rows, err := s.db.Query(`SELECT key, kind, value, updated_at FROM prefs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list prefs: %w", err)
	}
	defer rows.Close()

	var prefs []Pref
	for rows.Next() {
		var p Pref
		var updatedAt string
		if err := rows.Scan(&p.Key, &p.Kind, &p.Value, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}
