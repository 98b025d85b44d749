package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "items: saved knowledge items and their tags",
		SQL: `
CREATE TABLE items (
    id                      INTEGER PRIMARY KEY,
    title                   TEXT NOT NULL,
    status                  TEXT NOT NULL DEFAULT 'inbox' CHECK (status IN ('inbox', 'active', 'archived', 'dismissed')),

    -- Engagement artifacts maintained by the host app; an item with at
    -- least one of either is eligible for the adaptive resurfacing queue.
    annotation_count        INTEGER NOT NULL DEFAULT 0,
    connection_count        INTEGER NOT NULL DEFAULT 0,

    -- Adaptive resurfacing state
    resurface_interval_days INTEGER NOT NULL DEFAULT 7 CHECK (resurface_interval_days >= 1),
    resurface_count         INTEGER NOT NULL DEFAULT 0,
    resurfacing_paused      INTEGER NOT NULL DEFAULT 0,
    last_resurfaced_at      INTEGER,
    last_engaged_at         INTEGER,

    created_at              INTEGER NOT NULL,
    updated_at              INTEGER NOT NULL
);

CREATE INDEX idx_items_status  ON items(status);
CREATE INDEX idx_items_created ON items(created_at DESC);
CREATE INDEX idx_items_updated ON items(updated_at DESC);

CREATE TABLE item_tags (
    item_id INTEGER NOT NULL,
    tag     TEXT NOT NULL,
    PRIMARY KEY (item_id, tag),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX idx_item_tags_tag ON item_tags(tag);
`,
	},
	{
		Version:     2,
		Description: "boards: collections with per-board nudge cadence",
		SQL: `
CREATE TABLE boards (
    id                    INTEGER PRIMARY KEY,
    name                  TEXT NOT NULL UNIQUE,
    -- 0 = inherit global cadence, -1 = nudges disabled for items that live
    -- only in disabled boards, positive = reserved for per-board cadence.
    nudge_frequency_hours INTEGER NOT NULL DEFAULT 0,
    created_at            INTEGER NOT NULL
);

CREATE TABLE board_items (
    board_id INTEGER NOT NULL,
    item_id  INTEGER NOT NULL,
    PRIMARY KEY (board_id, item_id),
    FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE,
    FOREIGN KEY (item_id)  REFERENCES items(id)  ON DELETE CASCADE
);

CREATE INDEX idx_board_items_item ON board_items(item_id);
`,
	},
	{
		Version:     3,
		Description: "courses: lecture sequences linked to items",
		SQL: `
CREATE TABLE courses (
    id         INTEGER PRIMARY KEY,
    title      TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE lectures (
    id           INTEGER PRIMARY KEY,
    course_id    INTEGER NOT NULL,
    item_id      INTEGER,
    position     INTEGER NOT NULL,
    title        TEXT NOT NULL,
    completed_at INTEGER,
    UNIQUE (course_id, position),
    FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE,
    FOREIGN KEY (item_id)   REFERENCES items(id)   ON DELETE SET NULL
);

CREATE INDEX idx_lectures_course ON lectures(course_id, position);
`,
	},
	{
		Version:     4,
		Description: "nudges: generated suggestions with independent lifecycle",
		SQL: `
CREATE TABLE nudges (
    id               INTEGER PRIMARY KEY,
    type             TEXT NOT NULL CHECK (type IN (
        'resurface', 'stale_inbox', 'connection_prompt', 'streak', 'continue_course',
        'reflection_prompt', 'contradiction', 'knowledge_gap', 'synthesis_prompt',
        'dialectical_check_in')),
    status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'shown', 'dismissed', 'acted_on')),
    message          TEXT NOT NULL,

    -- Typed check-in payload (dialectical check-ins only)
    trigger_kind     TEXT,
    opening_prompt   TEXT,

    -- Weak reference: no FK on purpose, a deleted item must not delete or
    -- corrupt the nudge. Resolved against items at read time.
    target_item_id   INTEGER,

    -- JSON array of item ids; used only for cooldown overlap matching.
    related_item_ids TEXT,

    created_at       INTEGER NOT NULL,
    shown_at         INTEGER,
    dismissed_at     INTEGER,
    acted_on_at      INTEGER
);

CREATE INDEX idx_nudges_type_status ON nudges(type, status);
CREATE INDEX idx_nudges_created     ON nudges(created_at DESC);
CREATE INDEX idx_nudges_dismissed   ON nudges(dismissed_at DESC);
`,
	},
	{
		Version:     5,
		Description: "nudge_counters + engine_marks: analytics and engine bookkeeping",
		SQL: `
CREATE TABLE nudge_counters (
    type      TEXT PRIMARY KEY,
    acted_on  INTEGER NOT NULL DEFAULT 0,
    dismissed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE engine_marks (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
