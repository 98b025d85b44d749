package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Course is an ordered lecture sequence the user is working through.
type Course struct {
	ID        int64
	Title     string
	CreatedAt int64
}

// Lecture is one position in a course, optionally linked to a saved item.
type Lecture struct {
	ID          int64
	CourseID    int64
	ItemID      *int64
	Position    int
	Title       string
	CompletedAt *int64
}

// CreateCourse inserts a new course.
func (db *DB) CreateCourse(course *Course) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`INSERT INTO courses (title, created_at) VALUES (?, ?)`, course.Title, now)
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	course.ID, _ = result.LastInsertId()
	course.CreatedAt = now
	return nil
}

// ListCourses returns all courses ordered by creation time.
func (db *DB) ListCourses() ([]Course, error) {
	rows, err := db.Query(`SELECT id, title, created_at FROM courses ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// AddLecture appends a lecture to a course.
func (db *DB) AddLecture(lecture *Lecture) error {
	result, err := db.Exec(`
		INSERT INTO lectures (course_id, item_id, position, title, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`, lecture.CourseID, lecture.ItemID, lecture.Position, lecture.Title, lecture.CompletedAt)
	if err != nil {
		return fmt.Errorf("add lecture: %w", err)
	}
	lecture.ID, _ = result.LastInsertId()
	return nil
}

// CompleteLecture marks a lecture finished.
func (db *DB) CompleteLecture(id int64, at int64) error {
	_, err := db.Exec(`UPDATE lectures SET completed_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("complete lecture: %w", err)
	}
	return nil
}

// NextLecture returns the lowest-position unfinished lecture of a course,
// or nil if the course is complete.
func (db *DB) NextLecture(courseID int64) (*Lecture, error) {
	row := db.QueryRow(`
		SELECT id, course_id, item_id, position, title, completed_at
		FROM lectures
		WHERE course_id = ? AND completed_at IS NULL
		ORDER BY position LIMIT 1
	`, courseID)
	lecture, err := scanLecture(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next lecture: %w", err)
	}
	return lecture, nil
}

// LectureItemIDs returns the item ids linked from a course's lectures.
func (db *DB) LectureItemIDs(courseID int64) ([]int64, error) {
	rows, err := db.Query(`
		SELECT item_id FROM lectures
		WHERE course_id = ? AND item_id IS NOT NULL
		ORDER BY position
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("lecture item ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lecture item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanLecture(row rowScanner) (*Lecture, error) {
	var l Lecture
	var itemID, completedAt sql.NullInt64
	err := row.Scan(&l.ID, &l.CourseID, &itemID, &l.Position, &l.Title, &completedAt)
	if err != nil {
		return nil, err
	}
	if itemID.Valid {
		l.ItemID = &itemID.Int64
	}
	if completedAt.Valid {
		l.CompletedAt = &completedAt.Int64
	}
	return &l, nil
}
