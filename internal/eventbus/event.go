// Package eventbus implements the newsroom's real-time event distribution
// hub: producers publish progress events, observers follow along over polling
// or streaming without ever being able to slow a producer down.
package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable progress notification. A missing StoryID means the
// event is global rather than tied to one story. Events are never used for
// control flow.
type Event struct {
	ID        string                 `json:"id,omitempty"`
	Agent     string                 `json:"agent"`
	EventType string                 `json:"event_type"`
	StoryID   string                 `json:"story_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// normalize fills in the generated fields on first publish
func (e Event) normalize() Event {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return e
}

// matches reports whether the event passes a subscriber's story filter.
// Global events are delivered to everyone.
func (e Event) matches(storyID string) bool {
	return storyID == "" || e.StoryID == "" || e.StoryID == storyID
}
