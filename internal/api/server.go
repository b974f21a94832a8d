// Package api serves the task service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"va-tasks/internal/auth"
	"va-tasks/pkg/eventgraph"
	"va-tasks/pkg/suggest"
	"va-tasks/pkg/task"
)

// Version is reported by the service banner.
const Version = "0.1.0"

// journalSource tags journal entries written by the API.
const journalSource = "api"

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	Suggest     suggest.Options // defaults for GET /api/suggestions
	Location    *time.Location  // resolves relative dates in quick entry
	CORSOrigins []string
	JWTSecret   []byte // empty disables auth on mutating routes
	Now         func() time.Time
}

// Server is the HTTP API server.
type Server struct {
	tasks   task.Store
	events  *eventgraph.Bus
	engine  *suggest.Engine
	auth    auth.Middleware
	opts    Options
	log     *zap.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a new Server. The engine should journal through the same Bus
// so suggestion events reach stream subscribers.
func New(tasks task.Store, events *eventgraph.Bus, engine *suggest.Engine, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Suggest == (suggest.Options{}) {
		opts.Suggest = suggest.DefaultOptions()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{
		tasks:  tasks,
		events: events,
		engine: engine,
		auth:   auth.New(opts.JWTSecret),
		opts:   opts,
		log:    logger.With(zap.String("component", "api")),
		mux:    http.NewServeMux(),
	}
	s.routes()

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	s.handler = c.Handler(s.requestLog(s.mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	guard := s.auth.Wrap

	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", guard(s.handleTaskCreate))
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PATCH /api/tasks/{id}", guard(s.handleTaskUpdate))
	s.mux.HandleFunc("DELETE /api/tasks/{id}", guard(s.handleTaskDelete))
	s.mux.HandleFunc("POST /api/ingest", guard(s.handleIngest))

	// Suggestions
	s.mux.HandleFunc("GET /api/suggestions", s.handleSuggestions)
	s.mux.HandleFunc("POST /api/suggestions/apply", guard(s.handleSuggestionApply))
	s.mux.HandleFunc("POST /api/suggestions/feedback", guard(s.handleSuggestionFeedback))

	// Journal
	s.mux.HandleFunc("GET /api/events", s.handleEventList)
	s.mux.HandleFunc("GET /api/events/verify", s.handleEventVerify)
	s.mux.HandleFunc("GET /api/events/stream", s.handleEventStream)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleEventGet)

	// System
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"ok": true, "service": "task", "version": Version})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskCount, err := s.tasks.Count(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	open, err := s.tasks.List(ctx, task.Filter{Open: true})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	eventCount, err := s.events.Count(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"tasks":       taskCount,
		"open_tasks":  len(open),
		"events":      eventCount,
		"subscribers": s.events.Subscribers(),
	})
}

// journal records a service event. Failures are logged; the caller's write
// has already succeeded.
func (s *Server) journal(r *http.Request, eventType string, content map[string]any) {
	if _, err := s.events.Append(r.Context(), eventType, journalSource, content, nil); err != nil {
		s.log.Warn("journal append failed",
			zap.String("event_type", eventType),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, task.ErrNotFound), errors.Is(err, eventgraph.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrInvalid), errors.Is(err, suggest.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeEcho decodes a suggestion resent by the client. Fields the request
// type does not name, such as score or rationale, are ignored.
func decodeEcho(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write json", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
