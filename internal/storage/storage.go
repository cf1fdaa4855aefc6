package storage

import (
	"context"
	"errors"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// ErrNotFound is returned when no record exists for the given story ID
var ErrNotFound = errors.New("story not found")

// ErrAlreadyRecorded is returned when a write-once record (research, archive)
// is written a second time for the same story. A second write signals a
// workflow bug upstream and must not silently overwrite the first.
var ErrAlreadyRecorded = errors.New("record already exists for story")

// StoryStore defines the narrow persistence interface for per-story records.
// Keeping it narrow allows swapping the in-memory backend for a durable or
// sharded one without touching coordinator logic.
type StoryStore interface {
	// Lifecycle
	Close() error

	// Assignments
	PutAssignment(ctx context.Context, a *domain.StoryAssignment) error
	GetAssignment(ctx context.Context, storyID string) (*domain.StoryAssignment, error)
	ListAssignments(ctx context.Context) ([]*domain.StoryAssignment, error)
	SetStatus(ctx context.Context, storyID string, status domain.StoryStatus) error

	// CompareAndSwapStatus atomically transitions a story's status and
	// reports whether the swap happened. It backs the per-story in-flight
	// marker that rejects concurrent production of the same story.
	CompareAndSwapStatus(ctx context.Context, storyID string, from, to domain.StoryStatus) (bool, error)

	// Drafts
	PutDraft(ctx context.Context, d *domain.Draft) error
	GetDraft(ctx context.Context, storyID string) (*domain.Draft, error)
	UpdateDraft(ctx context.Context, d *domain.Draft) error

	// Write-once records
	PutResearch(ctx context.Context, r *domain.ResearchRecord) error
	GetResearch(ctx context.Context, storyID string) (*domain.ResearchRecord, error)
	PutArchive(ctx context.Context, r *domain.ArchiveRecord) error
	GetArchive(ctx context.Context, storyID string) (*domain.ArchiveRecord, error)
}
