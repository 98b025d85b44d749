package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jpender/revisit/internal/config"
	"github.com/jpender/revisit/internal/engine"
	"github.com/jpender/revisit/internal/store"
)

// Server is the revisit HTTP API server.
type Server struct {
	db       *store.DB
	engine   *engine.Engine
	settings func() config.Nudges
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a new Server. settings is re-read on every tick request so
// config edits apply without a restart.
func New(db *store.DB, eng *engine.Engine, settings func() config.Nudges, version string) *Server {
	s := &Server{
		db:       db,
		engine:   eng,
		settings: settings,
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Engine
		r.Post("/tick", s.handleTick)
		r.Get("/queue/stats", s.handleQueueStats)

		// Nudge lifecycle
		r.Get("/nudges", s.handleListNudges)
		r.Get("/nudges/{nudgeID}", s.handleGetNudge)
		r.Post("/nudges/{nudgeID}/shown", s.handleNudgeShown)
		r.Post("/nudges/{nudgeID}/dismiss", s.handleNudgeDismiss)
		r.Post("/nudges/{nudgeID}/act", s.handleNudgeAct)

		// Host-app ingestion
		r.Post("/items", s.handleCreateItem)
		r.Post("/items/{itemID}/status", s.handleItemStatus)
		r.Post("/items/{itemID}/annotations", s.handleAddAnnotation)
		r.Post("/items/{itemID}/connections", s.handleAddConnection)
		r.Post("/items/{itemID}/pause", s.handleItemPause)
		r.Get("/boards", s.handleListBoards)
		r.Post("/boards", s.handleCreateBoard)
		r.Post("/boards/{boardID}/items", s.handleBoardAddItem)
		r.Post("/courses", s.handleCreateCourse)
		r.Post("/courses/{courseID}/lectures", s.handleAddLecture)
		r.Post("/lectures/{lectureID}/complete", s.handleCompleteLecture)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
