package store

import (
	"database/sql"
	"fmt"
	"time"
)

// NudgesDisabled is the nudge_frequency_hours sentinel that opts a board
// out of nudging entirely.
const NudgesDisabled = -1

// Board is a user collection of items carrying a nudge cadence override.
type Board struct {
	ID                  int64
	Name                string
	NudgeFrequencyHours int
	CreatedAt           int64
}

// CreateBoard inserts a new board.
func (db *DB) CreateBoard(board *Board) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO boards (name, nudge_frequency_hours, created_at) VALUES (?, ?, ?)
	`, board.Name, board.NudgeFrequencyHours, now)
	if err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	board.ID, _ = result.LastInsertId()
	board.CreatedAt = now
	return nil
}

// GetBoard returns a board by id, or nil if not found.
func (db *DB) GetBoard(id int64) (*Board, error) {
	var b Board
	err := db.QueryRow(`
		SELECT id, name, nudge_frequency_hours, created_at FROM boards WHERE id = ?
	`, id).Scan(&b.ID, &b.Name, &b.NudgeFrequencyHours, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	return &b, nil
}

// ListBoards returns all boards ordered by name.
func (db *DB) ListBoards() ([]Board, error) {
	rows, err := db.Query(`SELECT id, name, nudge_frequency_hours, created_at FROM boards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	var boards []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.Name, &b.NudgeFrequencyHours, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// AddItemToBoard adds an item to a board. Already-present is a no-op.
func (db *DB) AddItemToBoard(boardID, itemID int64) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO board_items (board_id, item_id) VALUES (?, ?)
	`, boardID, itemID)
	if err != nil {
		return fmt.Errorf("add item to board: %w", err)
	}
	return nil
}

// BoardsForItem returns the boards containing an item.
func (db *DB) BoardsForItem(itemID int64) ([]Board, error) {
	rows, err := db.Query(`
		SELECT b.id, b.name, b.nudge_frequency_hours, b.created_at
		FROM boards b JOIN board_items bi ON bi.board_id = b.id
		WHERE bi.item_id = ?
		ORDER BY b.name
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("boards for item: %w", err)
	}
	defer rows.Close()

	var boards []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.Name, &b.NudgeFrequencyHours, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// OptedOutItemIDs returns items that belong to at least one board and whose
// every board has nudging disabled. Items in no boards are never opted out.
func (db *DB) OptedOutItemIDs() (map[int64]bool, error) {
	rows, err := db.Query(`
		SELECT bi.item_id FROM board_items bi
		JOIN boards b ON b.id = bi.board_id
		GROUP BY bi.item_id
		HAVING MAX(b.nudge_frequency_hours) = ? AND MIN(b.nudge_frequency_hours) = ?
	`, NudgesDisabled, NudgesDisabled)
	if err != nil {
		return nil, fmt.Errorf("opted out items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan opted out item: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// BoardItems returns the items in a board.
func (db *DB) BoardItems(boardID int64) ([]Item, error) {
	rows, err := db.Query(`
		SELECT `+itemColumns+` FROM items
		WHERE id IN (SELECT item_id FROM board_items WHERE board_id = ?)
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("board items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}
