package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jpender/revisit/internal/store"
)

func TestCreateItem(t *testing.T) {
	srv, db := testServer(t)

	body := `{"title":"attention is all you need","tags":["ml","papers"]}`
	req := httptest.NewRequest("POST", "/api/items", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "inbox" {
		t.Errorf("status = %q, want inbox", resp.Status)
	}

	tags, err := db.GetItemTags(resp.ID)
	if err != nil {
		t.Fatalf("GetItemTags: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("tags = %v, want 2", tags)
	}
}

func TestCreateItemMissingTitle(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("POST", "/api/items", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestItemStatusRejectsUnknown(t *testing.T) {
	srv, db := testServer(t)

	item := &store.Item{Title: "note"}
	db.CreateItem(item)

	body := `{"status":"banana"}`
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/items/%d/status", item.ID), strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAnnotationFlipsEligibility(t *testing.T) {
	srv, db := testServer(t)

	item := &store.Item{Title: "note", Status: store.ItemActive}
	db.CreateItem(item)

	req := httptest.NewRequest("POST", fmt.Sprintf("/api/items/%d/annotations", item.ID), nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	got, _ := db.GetItem(item.ID)
	if !got.Eligible() {
		t.Error("item should be eligible after annotation")
	}
}

func TestNudgeLifecycleEndpoints(t *testing.T) {
	srv, db := testServer(t)

	item := &store.Item{Title: "note", Status: store.ItemActive, AnnotationCount: 1}
	db.CreateItem(item)

	n := &store.Nudge{Type: store.NudgeResurface, Message: "revisit", TargetItemID: &item.ID}
	if err := db.CreateNudge(n, time.Now().UnixMilli()); err != nil {
		t.Fatalf("CreateNudge: %v", err)
	}

	for _, step := range []struct {
		action string
		want   string
	}{
		{"shown", "shown"},
		{"act", "acted_on"},
	} {
		req := httptest.NewRequest("POST", fmt.Sprintf("/api/nudges/%d/%s", n.ID, step.action), nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want %d; body: %s", step.action, w.Code, http.StatusOK, w.Body.String())
		}
	}

	got, _ := db.GetNudge(n.ID)
	if got.Status != store.NudgeActedOn {
		t.Errorf("status = %q, want acted_on", got.Status)
	}

	// Acting on the nudge records engagement on the target item.
	gotItem, _ := db.GetItem(item.ID)
	if gotItem.ResurfaceIntervalDays != 14 {
		t.Errorf("interval = %d, want 14 after engagement", gotItem.ResurfaceIntervalDays)
	}
}

func TestNudgeInvalidTransitionConflicts(t *testing.T) {
	srv, db := testServer(t)

	n := &store.Nudge{Type: store.NudgeStreak, Message: "m"}
	db.CreateNudge(n, time.Now().UnixMilli())
	db.DismissNudge(n.ID, time.Now().UnixMilli())

	req := httptest.NewRequest("POST", fmt.Sprintf("/api/nudges/%d/shown", n.ID), nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestListNudgesFilter(t *testing.T) {
	srv, db := testServer(t)

	at := time.Now().UnixMilli()
	a := &store.Nudge{Type: store.NudgeStreak, Message: "a"}
	b := &store.Nudge{Type: store.NudgeStaleInbox, Message: "b"}
	db.CreateNudge(a, at)
	db.CreateNudge(b, at)
	db.DismissNudge(b.ID, at+1)

	req := httptest.NewRequest("GET", "/api/nudges?status=pending", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var resp struct {
		Count  int `json:"count"`
		Nudges []struct {
			Type string `json:"type"`
		} `json:"nudges"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 1 || resp.Nudges[0].Type != "streak" {
		t.Errorf("resp = %+v, want only the pending streak nudge", resp)
	}
}

func TestTickEndpoint(t *testing.T) {
	srv, db := testServer(t)

	old := time.Now().AddDate(0, 0, -20).UnixMilli()
	for i := 0; i < 6; i++ {
		db.CreateItem(&store.Item{Title: "untriaged", CreatedAt: old, UpdatedAt: old})
	}

	req := httptest.NewRequest("POST", "/api/tick", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var rep struct {
		Created int `json:"created"`
	}
	json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.Created != 1 {
		t.Errorf("created = %d, want 1 (stale inbox)", rep.Created)
	}

	nudges, _ := db.ListNudges("pending")
	if len(nudges) != 1 || nudges[0].Type != store.NudgeStaleInbox {
		t.Errorf("nudges = %+v, want one pending stale_inbox", nudges)
	}
}

func TestErrorBodiesAreValidJSON(t *testing.T) {
	w := httptest.NewRecorder()
	jsonError(w, `item "with quotes" failed`, http.StatusInternalServerError)

	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not valid JSON: %v; body: %s", err, w.Body.String())
	}
	if resp.Error != `item "with quotes" failed` {
		t.Errorf("error = %q, want the original message", resp.Error)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	// Handler error paths go through the same encoder.
	srv, db := testServer(t)
	n := &store.Nudge{Type: store.NudgeStreak, Message: "m"}
	db.CreateNudge(n, time.Now().UnixMilli())
	db.DismissNudge(n.ID, time.Now().UnixMilli())

	req := httptest.NewRequest("POST", fmt.Sprintf("/api/nudges/%d/act", n.ID), nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("conflict body is not valid JSON: %v; body: %s", err, w.Body.String())
	}
	if resp.Error == "" {
		t.Error("conflict body has no error message")
	}
}

func TestBoardAndCourseIngestion(t *testing.T) {
	srv, db := testServer(t)

	req := httptest.NewRequest("POST", "/api/boards", strings.NewReader(`{"name":"reading","nudge_frequency_hours":-1}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create board: status = %d; body: %s", w.Code, w.Body.String())
	}
	var boardResp struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(w.Body.Bytes(), &boardResp)

	item := &store.Item{Title: "note", Status: store.ItemActive}
	db.CreateItem(item)

	body := fmt.Sprintf(`{"item_id":%d}`, item.ID)
	req = httptest.NewRequest("POST", fmt.Sprintf("/api/boards/%d/items", boardResp.ID), strings.NewReader(body))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("add board item: status = %d; body: %s", w.Code, w.Body.String())
	}

	boards, _ := db.BoardsForItem(item.ID)
	if len(boards) != 1 || boards[0].NudgeFrequencyHours != store.NudgesDisabled {
		t.Errorf("boards = %+v, want one opted-out board", boards)
	}

	req = httptest.NewRequest("POST", "/api/courses", strings.NewReader(`{"title":"Course"}`))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create course: status = %d; body: %s", w.Code, w.Body.String())
	}
	var courseResp struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(w.Body.Bytes(), &courseResp)

	req = httptest.NewRequest("POST", fmt.Sprintf("/api/courses/%d/lectures", courseResp.ID),
		strings.NewReader(`{"title":"Intro","position":1}`))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("add lecture: status = %d; body: %s", w.Code, w.Body.String())
	}

	next, _ := db.NextLecture(courseResp.ID)
	if next == nil || next.Title != "Intro" {
		t.Fatalf("next = %+v, want the Intro lecture", next)
	}
}
