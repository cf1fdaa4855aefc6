package coordinator

import (
	"context"
	"errors"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// ErrArchiveSkipped is returned by an Archivist when it declined the search.
// The coordinator treats it the same as any other archivist failure.
var ErrArchiveSkipped = errors.New("archivist skipped the search")

// Researcher is the best-effort fact-gathering collaborator. Its failure
// degrades a story but never aborts it.
type Researcher interface {
	Research(ctx context.Context, storyID string, questions []string) (*domain.ResearchRecord, error)
}

// Archivist is the mandatory historical-search collaborator. It is an
// attestable source: a story cannot ship without prior coverage behind it.
type Archivist interface {
	Search(ctx context.Context, storyID, topic, angle string) (*domain.ArchiveRecord, error)
}

// DraftRouter receives the submitted draft for editorial review
type DraftRouter interface {
	RouteDraft(ctx context.Context, a *domain.StoryAssignment, d *domain.Draft) (ack string, err error)
}

// Publisher receives the final revised article
type Publisher interface {
	Publish(ctx context.Context, a *domain.StoryAssignment, d *domain.Draft) (ack string, err error)
}
