package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jpender/revisit/internal/config"
	"github.com/jpender/revisit/internal/engine"
	"github.com/jpender/revisit/internal/store"
)

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := engine.New(db, zerolog.Nop())
	settings := func() config.Nudges { return config.Default().Nudges }
	return New(db, eng, settings, "test-version"), db
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestQueueStatsEndpoint(t *testing.T) {
	srv, db := testServer(t)

	item := &store.Item{Title: "note", Status: store.ItemActive, AnnotationCount: 1}
	if err := db.CreateItem(item); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/queue/stats", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var body struct {
		Queue struct {
			TotalInQueue int `json:"total_in_queue"`
		} `json:"queue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Queue.TotalInQueue != 1 {
		t.Errorf("total_in_queue = %d, want 1", body.Queue.TotalInQueue)
	}
}
