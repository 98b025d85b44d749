package store

import (
	"database/sql"
	"fmt"
)

// NudgeCounter holds lifetime acted-on/dismissed tallies for one nudge
// type. Written only as a side effect of user action, never during
// generation.
type NudgeCounter struct {
	Type      NudgeType
	ActedOn   int
	Dismissed int
}

// BumpActedOn increments the acted-on counter for a type.
func (db *DB) BumpActedOn(t NudgeType) error {
	return db.bumpCounter(t, "acted_on")
}

// BumpDismissed increments the dismissed counter for a type.
func (db *DB) BumpDismissed(t NudgeType) error {
	return db.bumpCounter(t, "dismissed")
}

func (db *DB) bumpCounter(t NudgeType, column string) error {
	// column is one of the two fixed names above, never user input
	_, err := db.Exec(`
		INSERT INTO nudge_counters (type, `+column+`) VALUES (?, 1)
		ON CONFLICT(type) DO UPDATE SET `+column+` = `+column+` + 1
	`, string(t))
	if err != nil {
		return fmt.Errorf("bump %s counter: %w", column, err)
	}
	return nil
}

// ListCounters returns all per-type counters.
func (db *DB) ListCounters() ([]NudgeCounter, error) {
	rows, err := db.Query(`SELECT type, acted_on, dismissed FROM nudge_counters ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	var counters []NudgeCounter
	for rows.Next() {
		var c NudgeCounter
		var typ string
		if err := rows.Scan(&typ, &c.ActedOn, &c.Dismissed); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		c.Type = NudgeType(typ)
		counters = append(counters, c)
	}
	return counters, rows.Err()
}

// GetMark returns an engine bookkeeping timestamp by key, or nil if unset.
func (db *DB) GetMark(key string) (*int64, error) {
	var value int64
	err := db.QueryRow(`SELECT value FROM engine_marks WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mark %q: %w", key, err)
	}
	return &value, nil
}

// SetMark stores an engine bookkeeping timestamp.
func (db *DB) SetMark(key string, value int64) error {
	_, err := db.Exec(`
		INSERT INTO engine_marks (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set mark %q: %w", key, err)
	}
	return nil
}
