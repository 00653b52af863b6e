// Package adminhttp exposes an operator-facing HTTP surface over a set
// of streamlog directories: overview, on-demand retention evaluation, and
// directory deletion, routed with gorilla/mux.
package adminhttp

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	streamlog "github.com/lipandr/streamlog/internal/log"
	"github.com/lipandr/streamlog/internal/counters"
)

// Entry is one log this server administers.
type Entry struct {
	Dir       string
	Retention []streamlog.RetentionSpec
	// FirstOffset reports the log's current first offset; it is passed
	// through to EvaluateRetention, which always keeps the newest segment.
	FirstOffset func() uint64
}

// Server is a gorilla/mux router over a fixed set of named logs.
type Server struct {
	router    *mux.Router
	registry  *counters.Registry
	logger    *zap.Logger
	mu        sync.RWMutex
	entries   map[string]Entry
}

func NewServer(registry *counters.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:   mux.NewRouter(),
		registry: registry,
		logger:   logger,
		entries:  make(map[string]Entry),
	}
	s.router.HandleFunc("/overview", s.handleOverview).Methods(http.MethodGet)
	s.router.HandleFunc("/logs/{name}/overview", s.handleLogOverview).Methods(http.MethodGet)
	s.router.HandleFunc("/logs/{name}/retention", s.handleEvaluateRetention).Methods(http.MethodPost)
	s.router.HandleFunc("/logs/{name}", s.handleDeleteDirectory).Methods(http.MethodDelete)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Register adds a log directory the server will administer.
func (s *Server) Register(name string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = e
}

func (s *Server) lookup(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e, ok
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshots())
}

func (s *Server) handleLogOverview(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	e, ok := s.lookup(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	segs, err := streamlog.Overview(e.Dir)
	if err != nil {
		s.logger.Error("overview failed", zap.String("log", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, segs)
}

func (s *Server) handleEvaluateRetention(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	e, ok := s.lookup(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	var activeFirst uint64
	if e.FirstOffset != nil {
		activeFirst = e.FirstOffset()
	}
	newFirst, removed, err := streamlog.EvaluateRetention(e.Dir, e.Retention, activeFirst, time.Now())
	if err != nil {
		s.logger.Error("retention evaluation failed", zap.String("log", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"new_first_offset": newFirst,
		"segments_removed": removed,
	})
}

func (s *Server) handleDeleteDirectory(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	e, ok := s.lookup(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := os.RemoveAll(e.Dir); err != nil {
		s.logger.Error("delete directory failed", zap.String("log", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	delete(s.entries, name)
	s.mu.Unlock()
	s.registry.DeleteLog(name)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
