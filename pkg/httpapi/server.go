// Package httpapi exposes an lsm.DB over HTTP. It carries no storage
// invariants of its own: every handler is a thin adapter over the engine.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/lsmengine/lsmengine/pkg/lsm"
)

const defaultInspectLimit = 100

// Engine is the subset of *lsm.DB the HTTP surface depends on.
type Engine interface {
	Put(key, value string) error
	Get(key string) (string, bool, error)
	Delete(key string) error
	Scan(lo, hi string) ([]lsm.Entry, error)
	Stats() (lsm.Stats, error)
	Inspect(limit int) ([]lsm.Entry, error)
}

// Server wires an Engine to an http.Handler via chi.
type Server struct {
	engine Engine
	logger *logrus.Logger
	router chi.Router
}

// NewServer builds the router. A nil logger defaults to
// logrus.StandardLogger().
func NewServer(engine Engine, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{engine: engine, logger: logger}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleDashboard)
	r.Get("/stats", s.handleStats)
	r.Get("/inspect", s.handleInspect)
	r.Get("/scan", s.handleScan)
	r.Route("/kv/{key}", func(r chi.Router) {
		r.Put("/", s.handlePut)
		r.Get("/", s.handleGet)
		r.Delete("/", s.handleDelete)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Info("http request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Warn("httpapi: failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) statusForErr(err error) int {
	switch {
	case errors.Is(err, lsm.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, lsm.ErrNotOpen), errors.Is(err, lsm.ErrAlreadyClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	body, err := decodeValueBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.Put(key, body.Value); err != nil {
		s.writeError(w, s.statusForErr(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok, err := s.engine.Get(key)
	if err != nil {
		s.writeError(w, s.statusForErr(err), err.Error())
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "key not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.engine.Delete(key); err != nil {
		s.writeError(w, s.statusForErr(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	// Missing lo/hi query params fall through as "", which Scan already
	// treats as unbounded on that side.
	lo := r.URL.Query().Get("lo")
	hi := r.URL.Query().Get("hi")
	entries, err := s.engine.Scan(lo, hi)
	if err != nil {
		s.writeError(w, s.statusForErr(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats()
	if err != nil {
		s.writeError(w, s.statusForErr(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	limit := defaultInspectLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.engine.Inspect(limit)
	if err != nil {
		s.writeError(w, s.statusForErr(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats()
	if err != nil {
		s.writeError(w, s.statusForErr(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><head><title>lsmengine</title></head><body>")
	fmt.Fprintf(w, "<h1>lsmengine</h1>")
	fmt.Fprintf(w, "<p>memtable: %d bytes, %d entries</p>", st.MemTableBytes, st.MemTableEntries)
	fmt.Fprintf(w, "<table border=1><tr><th>level</th><th>tables</th><th>bytes</th></tr>")
	for i := range st.LevelTableCount {
		fmt.Fprintf(w, "<tr><td>%d</td><td>%d</td><td>%d</td></tr>", i, st.LevelTableCount[i], st.LevelBytes[i])
	}
	fmt.Fprintf(w, "</table></body></html>")
}

type valueBody struct {
	Value string `json:"value"`
}

func decodeValueBody(r *http.Request) (valueBody, error) {
	var body valueBody
	if r.Body == nil {
		return body, fmt.Errorf("empty body")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, err
	}
	return body, nil
}
