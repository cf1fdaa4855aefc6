// Package api exposes the coordinator over HTTP. All operations arrive on a
// single endpoint as a JSON action envelope, the same convention the sibling
// agents speak.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/config"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/coordinator"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// maxBodySize bounds request bodies; article content stays well under this
const maxBodySize = 4 << 20

// Server is the coordinator's HTTP server
type Server struct {
	config *config.Config
	coord  *coordinator.Coordinator

	mu      sync.RWMutex
	server  *http.Server
	running bool
}

// NewServer creates an API server around the coordinator
func NewServer(cfg *config.Config, coord *coordinator.Coordinator) *Server {
	return &Server{
		config: cfg,
		coord:  coord,
	}
}

// Start starts the API server on the configured port
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Stop stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.config.CORSAllowedOrigins))

	// Health check (public, no auth required)
	r.Get("/health", s.healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(apiKeyAuthMiddleware(s.config.APIKey))
		r.Post("/agent", s.agentHandler)
	})

	return r
}

// actionEnvelope is the common part of every request; the handler re-decodes
// the body into the typed variant once the action is known.
type actionEnvelope struct {
	Action string `json:"action"`
}

// acceptRequest carries the assignment as a nested object. The flattened
// top-level fields are accepted too for callers that skip the wrapper.
type acceptRequest struct {
	Assignment *assignmentPayload `json:"assignment"`
}

type assignmentPayload struct {
	StoryID      string `json:"story_id"`
	Topic        string `json:"topic"`
	Angle        string `json:"angle"`
	TargetLength int    `json:"target_length"`
	Priority     string `json:"priority"`
}

type writeRequest struct {
	StoryID string `json:"story_id"`
}

type editsRequest struct {
	StoryID string               `json:"story_id"`
	Review  *domain.EditorReview `json:"editor_review"`

	// LegacyReview keeps the older field name working
	LegacyReview *domain.EditorReview `json:"review"`
}

func (r *editsRequest) review() *domain.EditorReview {
	if r.Review != nil {
		return r.Review
	}
	return r.LegacyReview
}

type statusRequest struct {
	StoryID string `json:"story_id"`
}

func (s *Server) agentHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var envelope actionEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch envelope.Action {
	case "accept_assignment":
		s.handleAccept(w, r, body)
	case "write_article":
		s.handleWrite(w, r, body)
	case "apply_edits":
		s.handleEdits(w, r, body)
	case "get_status":
		s.handleStatus(w, r, body)
	case "":
		respondError(w, http.StatusBadRequest, "missing action")
	default:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", envelope.Action))
	}
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request, body []byte) {
	var req acceptRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload := req.Assignment
	if payload == nil {
		var flat assignmentPayload
		if err := json.Unmarshal(body, &flat); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		payload = &flat
	}

	a, err := s.coord.AcceptAssignment(r.Context(), domain.StoryAssignment{
		StoryID:      payload.StoryID,
		Topic:        payload.Topic,
		Angle:        payload.Angle,
		TargetLength: payload.TargetLength,
		Priority:     domain.ParsePriority(payload.Priority),
	})
	if err != nil {
		respondCoordinatorError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"message":  fmt.Sprintf("assignment %s accepted", a.StoryID),
		"story_id": a.StoryID,
		"priority": string(a.Priority),
	})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request, body []byte) {
	var req writeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.coord.ProduceArticle(r.Context(), req.StoryID)
	if err != nil {
		respondCoordinatorError(w, err)
		return
	}

	resp := map[string]interface{}{
		"status":     "success",
		"message":    fmt.Sprintf("draft submitted for story %s", result.StoryID),
		"story_id":   result.StoryID,
		"word_count": result.WordCount,
		"preview":    result.Preview,
	}
	if result.RoutingError != "" {
		resp["routing_error"] = result.RoutingError
	} else {
		resp["routing_ack"] = result.RoutingAck
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEdits(w http.ResponseWriter, r *http.Request, body []byte) {
	var req editsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	review := req.review()
	if review == nil {
		respondError(w, http.StatusBadRequest, "missing editor_review")
		return
	}

	result, err := s.coord.ApplyEdits(r.Context(), req.StoryID, review)
	if err != nil {
		respondCoordinatorError(w, err)
		return
	}

	resp := map[string]interface{}{
		"status":            "success",
		"message":           fmt.Sprintf("edits applied to story %s", result.StoryID),
		"story_id":          result.StoryID,
		"old_word_count":    result.OldWordCount,
		"word_count":        result.WordCount,
		"revisions_applied": result.RevisionsApplied,
		"preview":           result.Preview,
	}
	if result.PublishError != "" {
		resp["publish_error"] = result.PublishError
	} else {
		resp["publish_ack"] = result.PublishAck
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, body []byte) {
	var req statusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reports, err := s.coord.GetStatus(r.Context(), req.StoryID)
	if err != nil {
		respondCoordinatorError(w, err)
		return
	}

	if req.StoryID != "" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"message": fmt.Sprintf("status for story %s", req.StoryID),
			"story":   reports[0],
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "all stories",
		"stories": reports,
		"count":   len(reports),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"agent":  coordinator.AgentName,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// respondCoordinatorError maps the coordinator's error taxonomy onto HTTP
// status codes. The message always names what failed.
func respondCoordinatorError(w http.ResponseWriter, err error) {
	var (
		invalid  *coordinator.InvalidInputError
		notFound *coordinator.NotFoundError
		required *coordinator.RequiredDependencyFailure
	)
	switch {
	case errors.As(err, &invalid):
		respondError(w, http.StatusBadRequest, invalid.Error())
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &required):
		respondError(w, http.StatusBadGateway, required.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"status":  "error",
		"message": message,
	})
}
