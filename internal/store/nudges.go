package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// NudgeType enumerates the nudge producers' output types.
type NudgeType string

const (
	NudgeResurface        NudgeType = "resurface"
	NudgeStaleInbox       NudgeType = "stale_inbox"
	NudgeConnectionPrompt NudgeType = "connection_prompt"
	NudgeStreak           NudgeType = "streak"
	NudgeContinueCourse   NudgeType = "continue_course"

	// LLM-sourced types
	NudgeReflectionPrompt NudgeType = "reflection_prompt"
	NudgeContradiction    NudgeType = "contradiction"
	NudgeKnowledgeGap     NudgeType = "knowledge_gap"
	NudgeSynthesisPrompt  NudgeType = "synthesis_prompt"

	NudgeCheckIn NudgeType = "dialectical_check_in"
)

// Nudge statuses. dismissed and acted_on are terminal.
const (
	NudgePending   = "pending"
	NudgeShown     = "shown"
	NudgeDismissed = "dismissed"
	NudgeActedOn   = "acted_on"
)

// ErrInvalidTransition is returned when a status change would leave a
// terminal state or skip the state machine.
var ErrInvalidTransition = errors.New("invalid nudge transition")

// Nudge is a generated suggestion with a lifecycle independent of the item
// it targets. TargetItemID is a weak reference: the item may no longer
// exist.
type Nudge struct {
	ID      int64
	Type    NudgeType
	Status  string
	Message string

	// Check-in payload, empty for all other types.
	TriggerKind   string
	OpeningPrompt string

	TargetItemID   *int64
	RelatedItemIDs []int64

	CreatedAt   int64
	ShownAt     *int64
	DismissedAt *int64
	ActedOnAt   *int64
}

const nudgeColumns = `id, type, status, message, trigger_kind, opening_prompt,
	target_item_id, related_item_ids, created_at, shown_at, dismissed_at, acted_on_at`

// CreateNudge persists a new pending nudge.
func (db *DB) CreateNudge(n *Nudge, at int64) error {
	if n.Status == "" {
		n.Status = NudgePending
	}
	related, err := marshalIDs(n.RelatedItemIDs)
	if err != nil {
		return fmt.Errorf("marshal related ids: %w", err)
	}

	result, err := db.Exec(`
		INSERT INTO nudges (type, status, message, trigger_kind, opening_prompt,
			target_item_id, related_item_ids, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
	`, string(n.Type), n.Status, n.Message, n.TriggerKind, n.OpeningPrompt,
		n.TargetItemID, related, at)
	if err != nil {
		return fmt.Errorf("create nudge: %w", err)
	}

	n.ID, _ = result.LastInsertId()
	n.CreatedAt = at
	return nil
}

// GetNudge returns a nudge by id, or nil if not found.
func (db *DB) GetNudge(id int64) (*Nudge, error) {
	row := db.QueryRow(`SELECT `+nudgeColumns+` FROM nudges WHERE id = ?`, id)
	n, err := scanNudge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get nudge %d: %w", id, err)
	}
	return n, nil
}

// ListNudges returns nudges, newest first. An empty status returns all.
func (db *DB) ListNudges(status string) ([]Nudge, error) {
	query := `SELECT ` + nudgeColumns + ` FROM nudges`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list nudges: %w", err)
	}
	defer rows.Close()
	return scanNudges(rows)
}

// HasActiveNudge reports whether a nudge of the given type is pending or
// shown. This is the dedup-before-create check.
func (db *DB) HasActiveNudge(t NudgeType) (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM nudges WHERE type = ? AND status IN ('pending', 'shown')
	`, string(t)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check active nudge: %w", err)
	}
	return count > 0, nil
}

// CountCreatedSince returns the number of nudges created at or after the
// given time. Feeds the daily cap.
func (db *DB) CountCreatedSince(since int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM nudges WHERE created_at >= ?`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count created since: %w", err)
	}
	return count, nil
}

// CountActedOnSince returns the number of acted-on nudges created at or
// after the given time. Feeds the high-engagement override.
func (db *DB) CountActedOnSince(since int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM nudges WHERE status = 'acted_on' AND created_at >= ?
	`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count acted on since: %w", err)
	}
	return count, nil
}

// DismissedSince returns nudges of a type dismissed at or after the given
// time, for cooldown matching against a new candidate.
func (db *DB) DismissedSince(t NudgeType, since int64) ([]Nudge, error) {
	rows, err := db.Query(`
		SELECT `+nudgeColumns+` FROM nudges
		WHERE type = ? AND status = 'dismissed' AND dismissed_at >= ?
	`, string(t), since)
	if err != nil {
		return nil, fmt.Errorf("dismissed since: %w", err)
	}
	defer rows.Close()
	return scanNudges(rows)
}

// DismissedResurfaceTargets returns the target item ids of resurface nudges
// dismissed at or after the given time.
func (db *DB) DismissedResurfaceTargets(since int64) (map[int64]bool, error) {
	rows, err := db.Query(`
		SELECT target_item_id FROM nudges
		WHERE type = 'resurface' AND status = 'dismissed' AND dismissed_at >= ?
			AND target_item_id IS NOT NULL
	`, since)
	if err != nil {
		return nil, fmt.Errorf("dismissed resurface targets: %w", err)
	}
	defer rows.Close()

	targets := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dismissed target: %w", err)
		}
		targets[id] = true
	}
	return targets, rows.Err()
}

// LatestNudge returns the most recently created nudge of a type, or nil.
func (db *DB) LatestNudge(t NudgeType) (*Nudge, error) {
	row := db.QueryRow(`
		SELECT `+nudgeColumns+` FROM nudges WHERE type = ? ORDER BY created_at DESC LIMIT 1
	`, string(t))
	n, err := scanNudge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest nudge: %w", err)
	}
	return n, nil
}

// MarkShown transitions a pending nudge to shown.
func (db *DB) MarkShown(id int64, at int64) error {
	result, err := db.Exec(`
		UPDATE nudges SET status = 'shown', shown_at = ? WHERE id = ? AND status = 'pending'
	`, at, id)
	if err != nil {
		return fmt.Errorf("mark shown: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("nudge %d: %w", id, ErrInvalidTransition)
	}
	return nil
}

// DismissNudge transitions a pending or shown nudge to dismissed.
// Dismissing before display is legal.
func (db *DB) DismissNudge(id int64, at int64) error {
	result, err := db.Exec(`
		UPDATE nudges SET status = 'dismissed', dismissed_at = ?
		WHERE id = ? AND status IN ('pending', 'shown')
	`, at, id)
	if err != nil {
		return fmt.Errorf("dismiss nudge: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("nudge %d: %w", id, ErrInvalidTransition)
	}
	return nil
}

// MarkActedOn transitions a shown nudge to acted_on.
func (db *DB) MarkActedOn(id int64, at int64) error {
	result, err := db.Exec(`
		UPDATE nudges SET status = 'acted_on', acted_on_at = ? WHERE id = ? AND status = 'shown'
	`, at, id)
	if err != nil {
		return fmt.Errorf("mark acted on: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("nudge %d: %w", id, ErrInvalidTransition)
	}
	return nil
}

func marshalIDs(ids []int64) (sql.NullString, error) {
	if len(ids) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanNudge(row rowScanner) (*Nudge, error) {
	var n Nudge
	var typ string
	var triggerKind, openingPrompt, related sql.NullString
	var targetItem, shownAt, dismissedAt, actedOnAt sql.NullInt64
	err := row.Scan(&n.ID, &typ, &n.Status, &n.Message, &triggerKind, &openingPrompt,
		&targetItem, &related, &n.CreatedAt, &shownAt, &dismissedAt, &actedOnAt)
	if err != nil {
		return nil, err
	}
	n.Type = NudgeType(typ)
	n.TriggerKind = triggerKind.String
	n.OpeningPrompt = openingPrompt.String
	if targetItem.Valid {
		n.TargetItemID = &targetItem.Int64
	}
	if related.Valid && related.String != "" {
		if err := json.Unmarshal([]byte(related.String), &n.RelatedItemIDs); err != nil {
			return nil, fmt.Errorf("unmarshal related ids: %w", err)
		}
	}
	if shownAt.Valid {
		n.ShownAt = &shownAt.Int64
	}
	if dismissedAt.Valid {
		n.DismissedAt = &dismissedAt.Int64
	}
	if actedOnAt.Valid {
		n.ActedOnAt = &actedOnAt.Int64
	}
	return &n, nil
}

func scanNudges(rows *sql.Rows) ([]Nudge, error) {
	var nudges []Nudge
	for rows.Next() {
		n, err := scanNudge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan nudge: %w", err)
		}
		nudges = append(nudges, *n)
	}
	return nudges, rows.Err()
}
