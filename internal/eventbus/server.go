package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StreamMessage is one frame on the /stream connection: either a single
// event or a heartbeat sent when nothing has fired for a while.
type StreamMessage struct {
	Type      string    `json:"type"` // "event" or "heartbeat"
	Event     *Event    `json:"event,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server exposes the hub over HTTP: ingestion, bounded polling and
// long-lived streaming.
type Server struct {
	hub       *Hub
	heartbeat time.Duration

	mu      sync.Mutex
	server  *http.Server
	running bool
}

// NewServer creates an event bus server around the given hub. heartbeat is
// the idle interval after which a live stream receives a heartbeat frame.
func NewServer(hub *Hub, heartbeat time.Duration) *Server {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Server{
		hub:       hub,
		heartbeat: heartbeat,
	}
}

// Routes configures the HTTP surface
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Post("/events", s.publishHandler)
	r.Get("/events", s.listEventsHandler)
	r.Get("/stream", s.streamHandler)

	return r
}

// Start starts the server on the given port
func (s *Server) Start(port int) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.Routes(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	s.mu.Unlock()

	return s.server.ListenAndServe()
}

// Stop shuts the server down
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

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"status": "error", "message": message})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"subscribers": s.hub.SubscriberCount(),
		"time":        time.Now().Format(time.RFC3339),
	})
}

func (s *Server) publishHandler(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	if ev.Agent == "" || ev.EventType == "" {
		respondError(w, http.StatusBadRequest, "agent and event_type are required")
		return
	}

	notified := s.hub.Publish(ev)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":               "success",
		"subscribers_notified": notified,
	})
}

// listEventsHandler is the bounded polling fallback for observers that
// cannot hold a stream open
func (s *Server) listEventsHandler(w http.ResponseWriter, r *http.Request) {
	storyID := r.URL.Query().Get("story_id")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events := s.hub.History(since, storyID, limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"events": events,
		"count":  len(events),
	})
}

// streamHandler upgrades to a websocket, replays history since the requested
// timestamp, then delivers live events with idle heartbeats
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	storyID := r.URL.Query().Get("story_id")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("stream accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	// Subscribe before replay so nothing published mid-replay is lost;
	// duplicates are possible at the seam, gaps are not.
	sub := s.hub.Subscribe(storyID)
	defer s.hub.Unsubscribe(sub)

	// CloseRead tells us when the peer goes away
	ctx := conn.CloseRead(r.Context())

	for _, ev := range s.hub.History(since, storyID, 0) {
		if err := s.writeFrame(ctx, conn, eventFrame(ev)); err != nil {
			return
		}
	}

	idle := time.NewTimer(s.heartbeat)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := s.writeFrame(ctx, conn, eventFrame(ev)); err != nil {
				return
			}
			resetTimer(idle, s.heartbeat)

		case <-idle.C:
			frame := StreamMessage{Type: "heartbeat", Timestamp: time.Now()}
			if err := s.writeFrame(ctx, conn, frame); err != nil {
				return
			}
			idle.Reset(s.heartbeat)
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, frame StreamMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, frame)
}

func eventFrame(ev Event) StreamMessage {
	return StreamMessage{Type: "event", Event: &ev, Timestamp: time.Now()}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
