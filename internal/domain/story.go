package domain

import (
	"fmt"
	"strings"
	"time"
)

// StoryStatus represents where a story sits in the production pipeline
type StoryStatus string

const (
	StatusAccepted       StoryStatus = "accepted"
	StatusResearching    StoryStatus = "researching"
	StatusWriting        StoryStatus = "writing"
	StatusDraftSubmitted StoryStatus = "draft_submitted"
	StatusReviewed       StoryStatus = "reviewed"
	StatusEditing        StoryStatus = "editing"
	StatusPublished      StoryStatus = "published"
	StatusError          StoryStatus = "error"
)

// IsTerminal returns true if no further transitions are allowed
func (s StoryStatus) IsTerminal() bool {
	return s == StatusPublished || s == StatusError
}

// Priority represents the urgency of a story assignment
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority maps a string to a Priority, defaulting to normal
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return Priority(s)
	default:
		return PriorityNormal
	}
}

// StoryAssignment represents a story request accepted by the coordinator.
// The story ID is opaque and assigned by the caller; it is never reused.
type StoryAssignment struct {
	StoryID      string      `json:"story_id" yaml:"story_id"`
	Topic        string      `json:"topic" yaml:"topic"`
	Angle        string      `json:"angle,omitempty" yaml:"angle,omitempty"`
	TargetLength int         `json:"target_length,omitempty" yaml:"target_length,omitempty"`
	Priority     Priority    `json:"priority,omitempty" yaml:"priority,omitempty"`
	CreatedAt    time.Time   `json:"created_at" yaml:"created_at"`
	Status       StoryStatus `json:"status" yaml:"status"`
}

// Validate checks the fields a caller must supply
func (a *StoryAssignment) Validate() error {
	if strings.TrimSpace(a.StoryID) == "" {
		return fmt.Errorf("story_id is required")
	}
	if strings.TrimSpace(a.Topic) == "" {
		return fmt.Errorf("topic is required")
	}
	// target_length is optional; zero means no length target
	if a.TargetLength < 0 {
		return fmt.Errorf("target_length must not be negative")
	}
	return nil
}

// CountWords returns the whitespace-token count of content.
// Draft word counts are always derived through this helper.
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// Preview returns the first n characters of content for response payloads
func Preview(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n])
}
