package eventbus

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Sink receives progress events from producers. Implementations must never
// block or fail the caller; a lost event is acceptable, a stalled producer
// is not.
type Sink interface {
	Emit(ev Event)
}

// NopSink discards events (used when the bus is disabled)
type NopSink struct{}

// Emit does nothing
func (NopSink) Emit(Event) {}

// Emitter posts events to a remote event bus, fire-and-forget. Failures are
// logged and never propagate to the producing workflow.
type Emitter struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewEmitter creates an emitter for the bus at baseURL
func NewEmitter(baseURL string) *Emitter {
	return &Emitter{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    5 * time.Second,
	}
}

// Emit sends the event in the background and returns immediately
func (e *Emitter) Emit(ev Event) {
	ev = ev.normalize()
	go e.post(ev)
}

func (e *Emitter) post(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("eventbus: failed to encode event %s: %v", ev.EventType, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		log.Printf("eventbus: failed to build publish request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		log.Printf("eventbus: publish failed: %v", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("eventbus: publish returned HTTP %d", resp.StatusCode)
	}
}
