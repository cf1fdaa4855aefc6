package storage

import (
	"context"
	"sync"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// MemoryStore implements StoryStore with in-process maps. It is the default
// backend; two stories' records are independent and all methods are safe
// under concurrent callers.
type MemoryStore struct {
	mu          sync.RWMutex
	assignments map[string]*domain.StoryAssignment
	drafts      map[string]*domain.Draft
	research    map[string]*domain.ResearchRecord
	archives    map[string]*domain.ArchiveRecord
}

// NewMemoryStore creates an empty in-memory story store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments: make(map[string]*domain.StoryAssignment),
		drafts:      make(map[string]*domain.Draft),
		research:    make(map[string]*domain.ResearchRecord),
		archives:    make(map[string]*domain.ArchiveRecord),
	}
}

// Close is a no-op for the memory backend
func (s *MemoryStore) Close() error {
	return nil
}

// PutAssignment stores or overwrites the assignment for its story ID
func (s *MemoryStore) PutAssignment(_ context.Context, a *domain.StoryAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.assignments[a.StoryID] = &cp
	return nil
}

// GetAssignment returns the assignment for a story, or ErrNotFound
func (s *MemoryStore) GetAssignment(_ context.Context, storyID string) (*domain.StoryAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[storyID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListAssignments returns all known assignments
func (s *MemoryStore) ListAssignments(_ context.Context) ([]*domain.StoryAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.StoryAssignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// SetStatus updates the status of an existing assignment
func (s *MemoryStore) SetStatus(_ context.Context, storyID string, status domain.StoryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[storyID]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	return nil
}

// CompareAndSwapStatus transitions status only when it currently equals from
func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, storyID string, from, to domain.StoryStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[storyID]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

// PutDraft stores the draft for its story ID
func (s *MemoryStore) PutDraft(_ context.Context, d *domain.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *d
	s.drafts[d.StoryID] = &cp
	return nil
}

// GetDraft returns the draft for a story, or ErrNotFound
func (s *MemoryStore) GetDraft(_ context.Context, storyID string) (*domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[storyID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// UpdateDraft replaces an existing draft
func (s *MemoryStore) UpdateDraft(_ context.Context, d *domain.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[d.StoryID]; !ok {
		return ErrNotFound
	}
	cp := *d
	s.drafts[d.StoryID] = &cp
	return nil
}

// PutResearch stores the research record once; a second write fails
func (s *MemoryStore) PutResearch(_ context.Context, r *domain.ResearchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.research[r.StoryID]; ok {
		return ErrAlreadyRecorded
	}
	cp := *r
	s.research[r.StoryID] = &cp
	return nil
}

// GetResearch returns the research record for a story, or ErrNotFound
func (s *MemoryStore) GetResearch(_ context.Context, storyID string) (*domain.ResearchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.research[storyID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// PutArchive stores the archive record once; a second write fails
func (s *MemoryStore) PutArchive(_ context.Context, r *domain.ArchiveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.archives[r.StoryID]; ok {
		return ErrAlreadyRecorded
	}
	cp := *r
	s.archives[r.StoryID] = &cp
	return nil
}

// GetArchive returns the archive record for a story, or ErrNotFound
func (s *MemoryStore) GetArchive(_ context.Context, storyID string) (*domain.ArchiveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.archives[storyID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}
