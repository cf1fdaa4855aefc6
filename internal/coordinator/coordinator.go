// Package coordinator drives one story from acceptance to publication,
// fanning out to the research collaborators and emitting progress events at
// every transition.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/eventbus"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/llm"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/storage"
)

// AgentName identifies the coordinator in emitted events
const AgentName = "coordinator"

// PreviewLength is the number of characters returned in produce responses
const PreviewLength = 200

// Coordinator owns the per-story state machine. Two stories' pipelines run
// fully independently; within one story only the researcher/archivist pair
// runs in parallel.
type Coordinator struct {
	store      storage.StoryStore
	gen        llm.TextGenerator
	researcher Researcher
	archivist  Archivist
	router     DraftRouter
	publisher  Publisher
	events     eventbus.Sink
}

// New creates a coordinator wired to its collaborators
func New(store storage.StoryStore, gen llm.TextGenerator, researcher Researcher, archivist Archivist, router DraftRouter, publisher Publisher, events eventbus.Sink) *Coordinator {
	if events == nil {
		events = eventbus.NopSink{}
	}
	return &Coordinator{
		store:      store,
		gen:        gen,
		researcher: researcher,
		archivist:  archivist,
		router:     router,
		publisher:  publisher,
		events:     events,
	}
}

// ProduceResult is the outcome of a successful article production
type ProduceResult struct {
	StoryID      string `json:"story_id"`
	WordCount    int    `json:"word_count"`
	Preview      string `json:"preview"`
	RoutingAck   string `json:"routing_ack,omitempty"`
	RoutingError string `json:"routing_error,omitempty"`
}

// EditResult is the outcome of a successful edit integration
type EditResult struct {
	StoryID          string `json:"story_id"`
	OldWordCount     int    `json:"old_word_count"`
	WordCount        int    `json:"word_count"`
	RevisionsApplied int    `json:"revisions_applied"`
	Preview          string `json:"preview"`
	PublishAck       string `json:"publish_ack,omitempty"`
	PublishError     string `json:"publish_error,omitempty"`
}

// StatusReport is the read-only view returned by GetStatus
type StatusReport struct {
	StoryID          string             `json:"story_id"`
	Topic            string             `json:"topic"`
	Priority         domain.Priority    `json:"priority"`
	Status           domain.StoryStatus `json:"status"`
	HasDraft         bool               `json:"has_draft"`
	WordCount        int                `json:"word_count,omitempty"`
	RevisionsApplied int                `json:"revisions_applied,omitempty"`
}

// AcceptAssignment records a story assignment. Idempotent per story ID:
// re-accepting overwrites metadata only, never the lifecycle status.
func (c *Coordinator) AcceptAssignment(ctx context.Context, a domain.StoryAssignment) (*domain.StoryAssignment, error) {
	if err := a.Validate(); err != nil {
		return nil, &InvalidInputError{Reason: err.Error()}
	}

	a.Priority = domain.ParsePriority(string(a.Priority))

	existing, err := c.store.GetAssignment(ctx, a.StoryID)
	switch {
	case err == nil:
		// Metadata refresh; the story keeps its place in the pipeline
		a.Status = existing.Status
		a.CreatedAt = existing.CreatedAt
	case errors.Is(err, storage.ErrNotFound):
		a.Status = domain.StatusAccepted
		a.CreatedAt = time.Now()
	default:
		return nil, fmt.Errorf("failed to look up story %s: %w", a.StoryID, err)
	}

	if err := c.store.PutAssignment(ctx, &a); err != nil {
		return nil, fmt.Errorf("failed to store assignment %s: %w", a.StoryID, err)
	}

	c.emit(a.StoryID, "assignment_accepted", map[string]interface{}{
		"topic":    a.Topic,
		"priority": string(a.Priority),
	})
	return &a, nil
}

// ProduceArticle runs the full production pipeline for an accepted story:
// outline, research/archive fan-out, article generation, draft submission
// and the editorial hand-off.
func (c *Coordinator) ProduceArticle(ctx context.Context, storyID string) (*ProduceResult, error) {
	a, err := c.store.GetAssignment(ctx, storyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{StoryID: storyID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up story %s: %w", storyID, err)
	}

	if a.Status.IsTerminal() {
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("story %s is in terminal state %s", storyID, a.Status),
		}
	}

	// The status transition doubles as the per-story in-flight marker:
	// concurrent production of the same story loses this swap and fails
	// fast instead of racing.
	swapped, err := c.store.CompareAndSwapStatus(ctx, storyID, domain.StatusAccepted, domain.StatusResearching)
	if err != nil {
		return nil, fmt.Errorf("failed to mark story %s in flight: %w", storyID, err)
	}
	if !swapped {
		// Report where the story actually is: mid-production, or already
		// past it
		current, gerr := c.store.GetAssignment(ctx, storyID)
		if gerr != nil {
			return nil, fmt.Errorf("failed to look up story %s: %w", storyID, gerr)
		}
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("story %s is not awaiting production (status %s)", storyID, current.Status),
		}
	}

	c.emit(storyID, "production_started", map[string]interface{}{"topic": a.Topic})

	outline, err := c.gen.Outline(ctx, a)
	if err != nil {
		return nil, c.abort(ctx, storyID, &RequiredDependencyFailure{
			Collaborator: "text generation",
			Stage:        "outline generation",
			Err:          err,
		})
	}

	research, archive, err := c.gatherMaterial(ctx, a, outline.Questions)
	if err != nil {
		return nil, c.abort(ctx, storyID, err)
	}

	if err := c.store.SetStatus(ctx, storyID, domain.StatusWriting); err != nil {
		return nil, fmt.Errorf("failed to update story %s: %w", storyID, err)
	}
	c.emit(storyID, "writing_started", nil)

	body, err := c.gen.Compose(ctx, a, outline.Outline, research, archive)
	if err != nil {
		return nil, c.abort(ctx, storyID, &RequiredDependencyFailure{
			Collaborator: "text generation",
			Stage:        "article generation",
			Err:          err,
		})
	}

	draft := domain.NewDraft(storyID, body)
	if err := c.store.PutDraft(ctx, draft); err != nil {
		return nil, c.abort(ctx, storyID, fmt.Errorf("failed to store draft for %s: %w", storyID, err))
	}
	if err := c.store.SetStatus(ctx, storyID, domain.StatusDraftSubmitted); err != nil {
		return nil, fmt.Errorf("failed to update story %s: %w", storyID, err)
	}
	c.emit(storyID, "draft_submitted", map[string]interface{}{"word_count": draft.WordCount})

	result := &ProduceResult{
		StoryID:   storyID,
		WordCount: draft.WordCount,
		Preview:   domain.Preview(draft.Content, PreviewLength),
	}

	// The draft survives a failed hand-off; routing is reported, not fatal
	ack, routeErr := c.router.RouteDraft(ctx, a, draft)
	if routeErr != nil {
		failure := &RoutingFailure{Target: "editorial review", Err: routeErr}
		log.Printf("coordinator: story %s: %v", storyID, failure)
		result.RoutingError = failure.Error()
		c.emit(storyID, "routing_failed", map[string]interface{}{"error": routeErr.Error()})
	} else {
		result.RoutingAck = ack
		c.emit(storyID, "draft_routed", map[string]interface{}{"ack": ack})
	}

	return result, nil
}

// gatherMaterial fans out to the researcher and archivist concurrently and
// joins on both. Researcher failure degrades the story; any archivist
// failure, skip or empty result aborts it.
func (c *Coordinator) gatherMaterial(ctx context.Context, a *domain.StoryAssignment, questions []string) (*domain.ResearchRecord, *domain.ArchiveRecord, error) {
	if len(questions) == 0 {
		// Nothing to ask; the pipeline proceeds straight to writing
		return nil, nil, nil
	}

	c.emit(a.StoryID, "research_started", map[string]interface{}{"questions": len(questions)})

	var (
		wg       sync.WaitGroup
		research *domain.ResearchRecord
		rErr     error
		archive  *domain.ArchiveRecord
		aErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		research, rErr = c.researcher.Research(ctx, a.StoryID, questions)
	}()
	go func() {
		defer wg.Done()
		archive, aErr = c.archivist.Search(ctx, a.StoryID, a.Topic, a.Angle)
	}()
	wg.Wait()

	if rErr != nil {
		// Best-effort enrichment only; log and continue without it
		failure := &DependencyFailure{Collaborator: "researcher", Stage: "research", Err: rErr}
		log.Printf("coordinator: story %s: continuing degraded: %v", a.StoryID, failure)
		c.emit(a.StoryID, "research_failed", map[string]interface{}{"error": rErr.Error()})
		research = nil
	}

	if aErr != nil || archive == nil || len(archive.References) == 0 {
		if aErr == nil {
			aErr = errors.New("empty result")
		}
		return nil, nil, &RequiredDependencyFailure{
			Collaborator: "archivist",
			Stage:        "archive search",
			Err:          aErr,
		}
	}

	if research != nil {
		if err := c.store.PutResearch(ctx, research); err != nil {
			// A duplicate here means the workflow ran twice; flag it loudly
			log.Printf("coordinator: story %s: failed to store research: %v", a.StoryID, err)
		}
	}
	if err := c.store.PutArchive(ctx, archive); err != nil {
		log.Printf("coordinator: story %s: failed to store archive: %v", a.StoryID, err)
	}

	c.emit(a.StoryID, "research_completed", map[string]interface{}{
		"research_entries":   entryCount(research),
		"archive_references": len(archive.References),
	})
	return research, archive, nil
}

// ApplyEdits integrates an editorial review into the stored draft and hands
// the result to the publisher. A failed publish hand-off never rolls back
// the edit.
func (c *Coordinator) ApplyEdits(ctx context.Context, storyID string, review *domain.EditorReview) (*EditResult, error) {
	a, err := c.store.GetAssignment(ctx, storyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{StoryID: storyID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up story %s: %w", storyID, err)
	}
	if a.Status == domain.StatusError {
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("story %s is in terminal state %s", storyID, a.Status),
		}
	}

	draft, err := c.store.GetDraft(ctx, storyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{StoryID: storyID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft for %s: %w", storyID, err)
	}

	if review.IsEmpty() {
		return nil, &InvalidInputError{Reason: "editor review is empty"}
	}

	// A draft is mutated at most once by edit integration
	if draft.Status == domain.DraftRevised {
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("draft for story %s has already been revised", storyID),
		}
	}

	if err := c.store.SetStatus(ctx, storyID, domain.StatusEditing); err != nil {
		return nil, fmt.Errorf("failed to update story %s: %w", storyID, err)
	}
	c.emit(storyID, "editing_started", map[string]interface{}{"edits": len(review.SuggestedEdits)})

	rewritten, err := c.gen.Revise(ctx, draft.Content, review.SuggestedEdits)
	if err != nil {
		return nil, c.abort(ctx, storyID, &RequiredDependencyFailure{
			Collaborator: "text generation",
			Stage:        "edit integration",
			Err:          err,
		})
	}

	oldWordCount := draft.WordCount
	draft.ApplyRevision(rewritten)
	if err := c.store.UpdateDraft(ctx, draft); err != nil {
		return nil, c.abort(ctx, storyID, fmt.Errorf("failed to store revision for %s: %w", storyID, err))
	}
	if err := c.store.SetStatus(ctx, storyID, domain.StatusPublished); err != nil {
		return nil, fmt.Errorf("failed to update story %s: %w", storyID, err)
	}
	c.emit(storyID, "edits_applied", map[string]interface{}{
		"old_word_count": oldWordCount,
		"word_count":     draft.WordCount,
	})

	result := &EditResult{
		StoryID:          storyID,
		OldWordCount:     oldWordCount,
		WordCount:        draft.WordCount,
		RevisionsApplied: draft.RevisionsApplied,
		Preview:          domain.Preview(draft.Content, PreviewLength),
	}

	ack, pubErr := c.publisher.Publish(ctx, a, draft)
	if pubErr != nil {
		failure := &RoutingFailure{Target: "publishing", Err: pubErr}
		log.Printf("coordinator: story %s: %v", storyID, failure)
		result.PublishError = failure.Error()
		c.emit(storyID, "publish_failed", map[string]interface{}{"error": pubErr.Error()})
	} else {
		result.PublishAck = ack
		c.emit(storyID, "story_published", map[string]interface{}{"word_count": draft.WordCount})
	}

	return result, nil
}

// GetStatus returns the read-only view for one story, or all stories when
// storyID is empty. Repeated calls never mutate state.
func (c *Coordinator) GetStatus(ctx context.Context, storyID string) ([]*StatusReport, error) {
	if storyID != "" {
		a, err := c.store.GetAssignment(ctx, storyID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{StoryID: storyID}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up story %s: %w", storyID, err)
		}
		return []*StatusReport{c.report(ctx, a)}, nil
	}

	all, err := c.store.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	reports := make([]*StatusReport, 0, len(all))
	for _, a := range all {
		reports = append(reports, c.report(ctx, a))
	}
	return reports, nil
}

func (c *Coordinator) report(ctx context.Context, a *domain.StoryAssignment) *StatusReport {
	r := &StatusReport{
		StoryID:  a.StoryID,
		Topic:    a.Topic,
		Priority: a.Priority,
		Status:   a.Status,
	}
	if draft, err := c.store.GetDraft(ctx, a.StoryID); err == nil {
		r.HasDraft = true
		r.WordCount = draft.WordCount
		r.RevisionsApplied = draft.RevisionsApplied
	}
	return r
}

// abort marks the story failed, emits the failure and passes err through
func (c *Coordinator) abort(ctx context.Context, storyID string, failure error) error {
	if err := c.store.SetStatus(ctx, storyID, domain.StatusError); err != nil {
		log.Printf("coordinator: story %s: failed to record error state: %v", storyID, err)
	}
	c.emit(storyID, "story_failed", map[string]interface{}{"error": failure.Error()})
	return failure
}

func (c *Coordinator) emit(storyID, eventType string, data map[string]interface{}) {
	c.events.Emit(eventbus.Event{
		Agent:     AgentName,
		EventType: eventType,
		StoryID:   storyID,
		Data:      data,
	})
}

func entryCount(r *domain.ResearchRecord) int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}
