package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Item statuses.
const (
	ItemInbox     = "inbox"
	ItemActive    = "active"
	ItemArchived  = "archived"
	ItemDismissed = "dismissed"
)

// Item is a saved piece of knowledge. The host app owns most of it; the
// engine reads it and mutates only the adaptive resurfacing fields.
type Item struct {
	ID                    int64
	Title                 string
	Status                string
	AnnotationCount       int
	ConnectionCount       int
	ResurfaceIntervalDays int
	ResurfaceCount        int
	ResurfacingPaused     bool
	LastResurfacedAt      *int64
	LastEngagedAt         *int64
	CreatedAt             int64
	UpdatedAt             int64
}

// Eligible reports whether the item qualifies for the adaptive resurfacing
// queue: at least one annotation or connection.
func (i *Item) Eligible() bool {
	return i.AnnotationCount > 0 || i.ConnectionCount > 0
}

const itemColumns = `id, title, status, annotation_count, connection_count,
	resurface_interval_days, resurface_count, resurfacing_paused,
	last_resurfaced_at, last_engaged_at, created_at, updated_at`

// CreateItem inserts a new item. Status defaults to inbox, the resurfacing
// interval to 7 days.
func (db *DB) CreateItem(item *Item) error {
	now := time.Now().UnixMilli()
	if item.Status == "" {
		item.Status = ItemInbox
	}
	if item.ResurfaceIntervalDays == 0 {
		item.ResurfaceIntervalDays = 7
	}
	if item.CreatedAt == 0 {
		item.CreatedAt = now
	}
	if item.UpdatedAt == 0 {
		item.UpdatedAt = item.CreatedAt
	}

	result, err := db.Exec(`
		INSERT INTO items (title, status, annotation_count, connection_count,
			resurface_interval_days, resurface_count, resurfacing_paused,
			last_resurfaced_at, last_engaged_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Title, item.Status, item.AnnotationCount, item.ConnectionCount,
		item.ResurfaceIntervalDays, item.ResurfaceCount, boolInt(item.ResurfacingPaused),
		item.LastResurfacedAt, item.LastEngagedAt, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	item.ID, _ = result.LastInsertId()
	return nil
}

// GetItem returns an item by id, or nil if not found.
func (db *DB) GetItem(id int64) (*Item, error) {
	row := db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

// SetItemStatus moves an item to a new lifecycle status.
func (db *DB) SetItemStatus(id int64, status string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	if err != nil {
		return fmt.Errorf("set item status: %w", err)
	}
	return nil
}

// TouchItem bumps updated_at, recording host-app activity on the item
// (read, annotated, connected). Streak detection keys off this.
func (db *DB) TouchItem(id int64, at int64) error {
	_, err := db.Exec(`UPDATE items SET updated_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("touch item: %w", err)
	}
	return nil
}

// AddAnnotation increments the annotation count, which may flip the item
// into adaptive-queue eligibility.
func (db *DB) AddAnnotation(id int64, at int64) error {
	_, err := db.Exec(`
		UPDATE items SET annotation_count = annotation_count + 1, updated_at = ? WHERE id = ?
	`, at, id)
	if err != nil {
		return fmt.Errorf("add annotation: %w", err)
	}
	return nil
}

// AddConnection increments the connection count on both endpoints.
func (db *DB) AddConnection(fromID, toID int64, at int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin connection: %w", err)
	}
	for _, id := range []int64{fromID, toID} {
		if _, err := tx.Exec(`
			UPDATE items SET connection_count = connection_count + 1, updated_at = ? WHERE id = ?
		`, at, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("add connection: %w", err)
		}
	}
	return tx.Commit()
}

// SaveResurfaceState writes back the fields owned by the resurfacing queue.
func (db *DB) SaveResurfaceState(item *Item) error {
	_, err := db.Exec(`
		UPDATE items SET resurface_interval_days = ?, resurface_count = ?,
			resurfacing_paused = ?, last_resurfaced_at = ?, last_engaged_at = ?
		WHERE id = ?
	`, item.ResurfaceIntervalDays, item.ResurfaceCount, boolInt(item.ResurfacingPaused),
		item.LastResurfacedAt, item.LastEngagedAt, item.ID)
	if err != nil {
		return fmt.Errorf("save resurface state: %w", err)
	}
	return nil
}

// SetResurfacingPaused sets the per-item user override.
func (db *DB) SetResurfacingPaused(id int64, paused bool) error {
	_, err := db.Exec(`UPDATE items SET resurfacing_paused = ? WHERE id = ?`, boolInt(paused), id)
	if err != nil {
		return fmt.Errorf("set resurfacing paused: %w", err)
	}
	return nil
}

// ListActiveItems returns all items with status = active.
func (db *DB) ListActiveItems() ([]Item, error) {
	rows, err := db.Query(`SELECT ` + itemColumns + ` FROM items WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// ListEligibleItems returns all items with at least one annotation or
// connection, regardless of status.
func (db *DB) ListEligibleItems() ([]Item, error) {
	rows, err := db.Query(`
		SELECT ` + itemColumns + ` FROM items
		WHERE annotation_count > 0 OR connection_count > 0
	`)
	if err != nil {
		return nil, fmt.Errorf("list eligible items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// CountStaleInbox returns the number of inbox items created at or before
// the cutoff.
func (db *DB) CountStaleInbox(cutoff int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM items WHERE status = 'inbox' AND created_at <= ?
	`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stale inbox: %w", err)
	}
	return count, nil
}

// TagGroupsSince returns item ids created since the given time, grouped by
// tag. Feeds the connection-prompt producer.
func (db *DB) TagGroupsSince(since int64) (map[string][]int64, error) {
	rows, err := db.Query(`
		SELECT t.tag, t.item_id FROM item_tags t
		JOIN items i ON i.id = t.item_id
		WHERE i.created_at >= ?
		ORDER BY t.tag, t.item_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("tag groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]int64)
	for rows.Next() {
		var tag string
		var id int64
		if err := rows.Scan(&tag, &id); err != nil {
			return nil, fmt.Errorf("scan tag group: %w", err)
		}
		groups[tag] = append(groups[tag], id)
	}
	return groups, rows.Err()
}

// SetItemTags replaces an item's tag set.
func (db *DB) SetItemTags(id int64, tags []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin set tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM item_tags WHERE item_id = ?`, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO item_tags (item_id, tag) VALUES (?, ?)`, id, tag); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return tx.Commit()
}

// GetItemTags returns an item's tags.
func (db *DB) GetItemTags(id int64) ([]string, error) {
	rows, err := db.Query(`SELECT tag FROM item_tags WHERE item_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("get item tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// CountItemsSharingTags returns how many items outside the excluded set
// share at least one of the given tags. Feeds continue-course messaging.
func (db *DB) CountItemsSharingTags(tags []string, exclude []int64) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}

	query := `SELECT COUNT(DISTINCT item_id) FROM item_tags WHERE tag IN (` + placeholders(len(tags)) + `)`
	args := make([]any, 0, len(tags)+len(exclude))
	for _, t := range tags {
		args = append(args, t)
	}
	if len(exclude) > 0 {
		query += ` AND item_id NOT IN (` + placeholders(len(exclude)) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}

	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count items sharing tags: %w", err)
	}
	return count, nil
}

// ListStaleIneligible returns active items with no engagement artifacts
// whose last update is at or before the cutoff. These feed the legacy
// staleness fallback, not the adaptive queue.
func (db *DB) ListStaleIneligible(cutoff int64) ([]Item, error) {
	rows, err := db.Query(`
		SELECT `+itemColumns+` FROM items
		WHERE status = 'active' AND annotation_count = 0 AND connection_count = 0
			AND updated_at <= ?
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale ineligible: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var i Item
	var paused int
	var lastResurfaced, lastEngaged sql.NullInt64
	err := row.Scan(&i.ID, &i.Title, &i.Status, &i.AnnotationCount, &i.ConnectionCount,
		&i.ResurfaceIntervalDays, &i.ResurfaceCount, &paused,
		&lastResurfaced, &lastEngaged, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.ResurfacingPaused = paused != 0
	if lastResurfaced.Valid {
		i.LastResurfacedAt = &lastResurfaced.Int64
	}
	if lastEngaged.Valid {
		i.LastEngagedAt = &lastEngaged.Int64
	}
	return &i, nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
