package store

import (
	"testing"
	"time"
)

func TestCreateItemDefaults(t *testing.T) {
	db := testDB(t)

	item := &Item{Title: "distributed systems notes"}
	if err := db.CreateItem(item); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := db.GetItem(item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != ItemInbox {
		t.Errorf("status = %q, want inbox", got.Status)
	}
	if got.ResurfaceIntervalDays != 7 {
		t.Errorf("interval = %d, want 7", got.ResurfaceIntervalDays)
	}
	if got.LastResurfacedAt != nil || got.LastEngagedAt != nil {
		t.Error("expected nil resurface timestamps on a new item")
	}
}

func TestGetItemMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetItem(999)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing item, got %+v", got)
	}
}

func TestEligibility(t *testing.T) {
	db := testDB(t)

	item := &Item{Title: "note", Status: ItemActive}
	if err := db.CreateItem(item); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Eligible() {
		t.Error("fresh item should not be eligible")
	}

	if err := db.AddAnnotation(item.ID, time.Now().UnixMilli()); err != nil {
		t.Fatalf("AddAnnotation: %v", err)
	}
	got, _ := db.GetItem(item.ID)
	if !got.Eligible() {
		t.Error("item with an annotation should be eligible")
	}
}

func TestAddConnectionBothEndpoints(t *testing.T) {
	db := testDB(t)

	a := &Item{Title: "a", Status: ItemActive}
	b := &Item{Title: "b", Status: ItemActive}
	db.CreateItem(a)
	db.CreateItem(b)

	if err := db.AddConnection(a.ID, b.ID, time.Now().UnixMilli()); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}

	for _, id := range []int64{a.ID, b.ID} {
		got, _ := db.GetItem(id)
		if got.ConnectionCount != 1 {
			t.Errorf("item %d connection_count = %d, want 1", id, got.ConnectionCount)
		}
		if !got.Eligible() {
			t.Errorf("item %d should be eligible after connection", id)
		}
	}
}

func TestSaveResurfaceState(t *testing.T) {
	db := testDB(t)

	item := &Item{Title: "note", Status: ItemActive, AnnotationCount: 1}
	db.CreateItem(item)

	at := time.Now().UnixMilli()
	item.ResurfaceIntervalDays = 14
	item.ResurfaceCount = 1
	item.LastEngagedAt = &at
	if err := db.SaveResurfaceState(item); err != nil {
		t.Fatalf("SaveResurfaceState: %v", err)
	}

	got, _ := db.GetItem(item.ID)
	if got.ResurfaceIntervalDays != 14 || got.ResurfaceCount != 1 {
		t.Errorf("state = (%d, %d), want (14, 1)", got.ResurfaceIntervalDays, got.ResurfaceCount)
	}
	if got.LastEngagedAt == nil || *got.LastEngagedAt != at {
		t.Errorf("last_engaged_at = %v, want %d", got.LastEngagedAt, at)
	}
}

func TestCountStaleInbox(t *testing.T) {
	db := testDB(t)

	old := time.Now().AddDate(0, 0, -20).UnixMilli()
	for i := 0; i < 3; i++ {
		db.CreateItem(&Item{Title: "old", CreatedAt: old, UpdatedAt: old})
	}
	db.CreateItem(&Item{Title: "fresh"})
	db.CreateItem(&Item{Title: "old but active", Status: ItemActive, CreatedAt: old, UpdatedAt: old})

	cutoff := time.Now().AddDate(0, 0, -14).UnixMilli()
	count, err := db.CountStaleInbox(cutoff)
	if err != nil {
		t.Fatalf("CountStaleInbox: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestTagGroupsSince(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 3; i++ {
		item := &Item{Title: "note", Status: ItemActive}
		db.CreateItem(item)
		db.SetItemTags(item.ID, []string{"golang", "reading"})
	}
	old := time.Now().AddDate(0, 0, -30).UnixMilli()
	oldItem := &Item{Title: "ancient", Status: ItemActive, CreatedAt: old, UpdatedAt: old}
	db.CreateItem(oldItem)
	db.SetItemTags(oldItem.ID, []string{"golang"})

	groups, err := db.TagGroupsSince(time.Now().AddDate(0, 0, -7).UnixMilli())
	if err != nil {
		t.Fatalf("TagGroupsSince: %v", err)
	}
	if len(groups["golang"]) != 3 {
		t.Errorf("golang group = %d items, want 3", len(groups["golang"]))
	}
	if len(groups["reading"]) != 3 {
		t.Errorf("reading group = %d items, want 3", len(groups["reading"]))
	}
}

func TestOptedOutItemIDs(t *testing.T) {
	db := testDB(t)

	disabled := &Board{Name: "private", NudgeFrequencyHours: NudgesDisabled}
	normal := &Board{Name: "reading"}
	db.CreateBoard(disabled)
	db.CreateBoard(normal)

	onlyDisabled := &Item{Title: "only disabled", Status: ItemActive}
	both := &Item{Title: "both", Status: ItemActive}
	noBoard := &Item{Title: "no board", Status: ItemActive}
	db.CreateItem(onlyDisabled)
	db.CreateItem(both)
	db.CreateItem(noBoard)

	db.AddItemToBoard(disabled.ID, onlyDisabled.ID)
	db.AddItemToBoard(disabled.ID, both.ID)
	db.AddItemToBoard(normal.ID, both.ID)

	out, err := db.OptedOutItemIDs()
	if err != nil {
		t.Fatalf("OptedOutItemIDs: %v", err)
	}
	if !out[onlyDisabled.ID] {
		t.Error("item only in a disabled board should be opted out")
	}
	if out[both.ID] {
		t.Error("item also in an enabled board should not be opted out")
	}
	if out[noBoard.ID] {
		t.Error("item in no boards should not be opted out")
	}
}

func TestListStaleIneligible(t *testing.T) {
	db := testDB(t)

	old := time.Now().AddDate(0, 0, -20).UnixMilli()
	stale := &Item{Title: "stale", Status: ItemActive, CreatedAt: old, UpdatedAt: old}
	db.CreateItem(stale)

	eligible := &Item{Title: "eligible", Status: ItemActive, AnnotationCount: 1, CreatedAt: old, UpdatedAt: old}
	db.CreateItem(eligible)

	fresh := &Item{Title: "fresh", Status: ItemActive}
	db.CreateItem(fresh)

	cutoff := time.Now().AddDate(0, 0, -14).UnixMilli()
	items, err := db.ListStaleIneligible(cutoff)
	if err != nil {
		t.Fatalf("ListStaleIneligible: %v", err)
	}
	if len(items) != 1 || items[0].ID != stale.ID {
		t.Errorf("items = %v, want only the stale ineligible one", items)
	}
}

func TestNextLectureOrdering(t *testing.T) {
	db := testDB(t)

	course := &Course{Title: "SICP"}
	if err := db.CreateCourse(course); err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}

	done := time.Now().UnixMilli()
	db.AddLecture(&Lecture{CourseID: course.ID, Position: 1, Title: "one", CompletedAt: &done})
	db.AddLecture(&Lecture{CourseID: course.ID, Position: 3, Title: "three"})
	db.AddLecture(&Lecture{CourseID: course.ID, Position: 2, Title: "two"})

	next, err := db.NextLecture(course.ID)
	if err != nil {
		t.Fatalf("NextLecture: %v", err)
	}
	if next == nil || next.Position != 2 {
		t.Fatalf("next = %+v, want position 2", next)
	}

	db.CompleteLecture(next.ID, done)
	next, _ = db.NextLecture(course.ID)
	if next == nil || next.Position != 3 {
		t.Fatalf("next = %+v, want position 3", next)
	}

	db.CompleteLecture(next.ID, done)
	next, _ = db.NextLecture(course.ID)
	if next != nil {
		t.Errorf("next = %+v, want nil for finished course", next)
	}
}
