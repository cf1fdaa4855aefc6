// Package testutil provides test fixtures and scripted collaborators for the
// newsroom pipeline tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/eventbus"
)

// Assignment creates a StoryAssignment for testing
func Assignment(storyID, topic string) domain.StoryAssignment {
	return domain.StoryAssignment{
		StoryID:      storyID,
		Topic:        topic,
		Angle:        "local impact",
		TargetLength: 500,
		Priority:     domain.PriorityNormal,
	}
}

// Research creates a one-entry research record for a story
func Research(storyID string) *domain.ResearchRecord {
	return &domain.ResearchRecord{
		StoryID:     storyID,
		Entries:     []domain.QA{{Question: "q1", Answer: "a1"}},
		CompletedAt: time.Now(),
	}
}

// Archive creates a one-reference archive record for a story
func Archive(storyID string, refs ...string) *domain.ArchiveRecord {
	if len(refs) == 0 {
		refs = []string{"a1"}
	}
	return &domain.ArchiveRecord{
		StoryID:     storyID,
		References:  refs,
		CompletedAt: time.Now(),
	}
}

// StubResearcher is a scripted Researcher collaborator
type StubResearcher struct {
	Record *domain.ResearchRecord
	Err    error

	mu    sync.Mutex
	calls int
}

// Research returns the scripted outcome and counts the call
func (s *StubResearcher) Research(_ context.Context, storyID string, _ []string) (*domain.ResearchRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Record != nil {
		return s.Record, nil
	}
	return Research(storyID), nil
}

// Calls returns how many times Research ran
func (s *StubResearcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubArchivist is a scripted Archivist collaborator
type StubArchivist struct {
	Record *domain.ArchiveRecord
	Err    error

	mu    sync.Mutex
	calls int
}

// Search returns the scripted outcome and counts the call
func (s *StubArchivist) Search(_ context.Context, storyID, _, _ string) (*domain.ArchiveRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Record != nil {
		return s.Record, nil
	}
	return Archive(storyID), nil
}

// Calls returns how many times Search ran
func (s *StubArchivist) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubRouter is a scripted editorial routing target
type StubRouter struct {
	Ack string
	Err error

	mu    sync.Mutex
	calls int
}

// RouteDraft returns the scripted acknowledgement
func (s *StubRouter) RouteDraft(_ context.Context, _ *domain.StoryAssignment, _ *domain.Draft) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}
	if s.Ack != "" {
		return s.Ack, nil
	}
	return "queued for review", nil
}

// Calls returns how many times RouteDraft ran
func (s *StubRouter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubPublisher is a scripted publisher collaborator
type StubPublisher struct {
	Ack string
	Err error

	mu    sync.Mutex
	calls int
}

// Publish returns the scripted acknowledgement
func (s *StubPublisher) Publish(_ context.Context, _ *domain.StoryAssignment, _ *domain.Draft) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}
	if s.Ack != "" {
		return s.Ack, nil
	}
	return "published", nil
}

// Calls returns how many times Publish ran
func (s *StubPublisher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// CaptureSink records emitted events for assertions
type CaptureSink struct {
	mu     sync.Mutex
	events []eventbus.Event
}

// Emit records the event
func (s *CaptureSink) Emit(ev eventbus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of everything recorded so far
func (s *CaptureSink) Events() []eventbus.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]eventbus.Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventTypes returns the recorded event types in publish order
func (s *CaptureSink) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}
