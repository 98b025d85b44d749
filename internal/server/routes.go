package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jpender/revisit/internal/store"
)

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	rep := s.engine.Tick(r.Context(), time.Now(), s.settings())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Queue().Stats(time.Now())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	counters, err := s.db.ListCounters()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type counterJSON struct {
		Type      string `json:"type"`
		ActedOn   int    `json:"acted_on"`
		Dismissed int    `json:"dismissed"`
	}
	out := make([]counterJSON, len(counters))
	for i, c := range counters {
		out[i] = counterJSON{Type: string(c.Type), ActedOn: c.ActedOn, Dismissed: c.Dismissed}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"queue":    stats,
		"counters": out,
	})
}

type nudgeJSON struct {
	ID             int64   `json:"id"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	Message        string  `json:"message"`
	TriggerKind    string  `json:"trigger_kind,omitempty"`
	OpeningPrompt  string  `json:"opening_prompt,omitempty"`
	TargetItemID   *int64  `json:"target_item_id,omitempty"`
	RelatedItemIDs []int64 `json:"related_item_ids,omitempty"`
	CreatedAt      int64   `json:"created_at"`
	ShownAt        *int64  `json:"shown_at,omitempty"`
	DismissedAt    *int64  `json:"dismissed_at,omitempty"`
	ActedOnAt      *int64  `json:"acted_on_at,omitempty"`
}

func toNudgeJSON(n *store.Nudge) nudgeJSON {
	return nudgeJSON{
		ID:             n.ID,
		Type:           string(n.Type),
		Status:         n.Status,
		Message:        n.Message,
		TriggerKind:    n.TriggerKind,
		OpeningPrompt:  n.OpeningPrompt,
		TargetItemID:   n.TargetItemID,
		RelatedItemIDs: n.RelatedItemIDs,
		CreatedAt:      n.CreatedAt,
		ShownAt:        n.ShownAt,
		DismissedAt:    n.DismissedAt,
		ActedOnAt:      n.ActedOnAt,
	}
}

func (s *Server) handleListNudges(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	nudges, err := s.db.ListNudges(status)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]nudgeJSON, len(nudges))
	for i := range nudges {
		out[i] = toNudgeJSON(&nudges[i])
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":  len(out),
		"nudges": out,
	})
}

func (s *Server) handleGetNudge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "nudgeID")
	if err != nil {
		jsonError(w, "invalid nudge id", http.StatusBadRequest)
		return
	}

	n, err := s.db.GetNudge(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if n == nil {
		jsonError(w, "nudge not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toNudgeJSON(n))
}

func (s *Server) handleNudgeShown(w http.ResponseWriter, r *http.Request) {
	s.nudgeTransition(w, r, s.engine.ShowNudge, "shown")
}

func (s *Server) handleNudgeDismiss(w http.ResponseWriter, r *http.Request) {
	s.nudgeTransition(w, r, s.engine.DismissNudge, "dismissed")
}

func (s *Server) handleNudgeAct(w http.ResponseWriter, r *http.Request) {
	s.nudgeTransition(w, r, s.engine.ActOnNudge, "acted_on")
}

func (s *Server) nudgeTransition(w http.ResponseWriter, r *http.Request, apply func(int64, time.Time) error, status string) {
	id, err := pathID(r, "nudgeID")
	if err != nil {
		jsonError(w, "invalid nudge id", http.StatusBadRequest)
		return
	}

	if err := apply(id, time.Now()); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, store.ErrInvalidTransition) {
			code = http.StatusConflict
		}
		jsonError(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string   `json:"title"`
		Status string   `json:"status"`
		Tags   []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		jsonError(w, "title required", http.StatusBadRequest)
		return
	}

	item := &store.Item{Title: req.Title, Status: req.Status}
	if err := s.db.CreateItem(item); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(req.Tags) > 0 {
		if err := s.db.SetItemTags(item.ID, req.Tags); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":     item.ID,
		"status": item.Status,
	})
}

func (s *Server) handleItemStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "itemID")
	if err != nil {
		jsonError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	switch req.Status {
	case store.ItemInbox, store.ItemActive, store.ItemArchived, store.ItemDismissed:
	default:
		jsonError(w, "invalid status", http.StatusBadRequest)
		return
	}

	if err := s.db.SetItemStatus(id, req.Status); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": req.Status})
}

func (s *Server) handleAddAnnotation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "itemID")
	if err != nil {
		jsonError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	if err := s.db.AddAnnotation(id, time.Now().UnixMilli()); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleAddConnection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "itemID")
	if err != nil {
		jsonError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	var req struct {
		ToID int64 `json:"to_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ToID == 0 {
		jsonError(w, "to_id required", http.StatusBadRequest)
		return
	}

	if err := s.db.AddConnection(id, req.ToID, time.Now().UnixMilli()); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleItemPause(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "itemID")
	if err != nil {
		jsonError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	var req struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.db.SetResurfacingPaused(id, req.Paused); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"paused": req.Paused})
}

func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.db.ListBoards()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type boardJSON struct {
		ID                  int64  `json:"id"`
		Name                string `json:"name"`
		NudgeFrequencyHours int    `json:"nudge_frequency_hours"`
	}
	out := make([]boardJSON, len(boards))
	for i, b := range boards {
		out[i] = boardJSON{ID: b.ID, Name: b.Name, NudgeFrequencyHours: b.NudgeFrequencyHours}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"boards": out})
}

func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                string `json:"name"`
		NudgeFrequencyHours int    `json:"nudge_frequency_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		jsonError(w, "name required", http.StatusBadRequest)
		return
	}

	board := &store.Board{Name: req.Name, NudgeFrequencyHours: req.NudgeFrequencyHours}
	if err := s.db.CreateBoard(board); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int64{"id": board.ID})
}

func (s *Server) handleBoardAddItem(w http.ResponseWriter, r *http.Request) {
	boardID, err := pathID(r, "boardID")
	if err != nil {
		jsonError(w, "invalid board id", http.StatusBadRequest)
		return
	}

	var req struct {
		ItemID int64 `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ItemID == 0 {
		jsonError(w, "item_id required", http.StatusBadRequest)
		return
	}

	if err := s.db.AddItemToBoard(boardID, req.ItemID); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		jsonError(w, "title required", http.StatusBadRequest)
		return
	}

	course := &store.Course{Title: req.Title}
	if err := s.db.CreateCourse(course); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int64{"id": course.ID})
}

func (s *Server) handleAddLecture(w http.ResponseWriter, r *http.Request) {
	courseID, err := pathID(r, "courseID")
	if err != nil {
		jsonError(w, "invalid course id", http.StatusBadRequest)
		return
	}

	var req struct {
		Title    string `json:"title"`
		Position int    `json:"position"`
		ItemID   *int64 `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Position < 1 {
		jsonError(w, "title and position required", http.StatusBadRequest)
		return
	}

	lecture := &store.Lecture{
		CourseID: courseID,
		Title:    req.Title,
		Position: req.Position,
		ItemID:   req.ItemID,
	}
	if err := s.db.AddLecture(lecture); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int64{"id": lecture.ID})
}

func (s *Server) handleCompleteLecture(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "lectureID")
	if err != nil {
		jsonError(w, "invalid lecture id", http.StatusBadRequest)
		return
	}

	if err := s.db.CompleteLecture(id, time.Now().UnixMilli()); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// jsonError writes an error body through the encoder so messages containing
// quotes stay valid JSON.
func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
