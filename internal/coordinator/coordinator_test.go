package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/llm"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/storage"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/testutil"
)

// pipeline bundles a coordinator with its scripted collaborators
type pipeline struct {
	coord      *Coordinator
	store      storage.StoryStore
	gen        *llm.MockGenerator
	researcher *testutil.StubResearcher
	archivist  *testutil.StubArchivist
	router     *testutil.StubRouter
	publisher  *testutil.StubPublisher
	events     *testutil.CaptureSink
}

func newPipeline() *pipeline {
	p := &pipeline{
		store:      storage.NewMemoryStore(),
		gen:        &llm.MockGenerator{Questions: []string{"q1"}},
		researcher: &testutil.StubResearcher{},
		archivist:  &testutil.StubArchivist{},
		router:     &testutil.StubRouter{},
		publisher:  &testutil.StubPublisher{},
		events:     &testutil.CaptureSink{},
	}
	p.coord = New(p.store, p.gen, p.researcher, p.archivist, p.router, p.publisher, p.events)
	return p
}

func (p *pipeline) accept(t *testing.T, storyID, topic string) {
	t.Helper()
	_, err := p.coord.AcceptAssignment(context.Background(), testutil.Assignment(storyID, topic))
	require.NoError(t, err)
}

func TestAcceptAssignment_Validation(t *testing.T) {
	p := newPipeline()

	tests := []struct {
		name       string
		assignment domain.StoryAssignment
	}{
		{name: "missing story_id", assignment: domain.StoryAssignment{Topic: "T"}},
		{name: "missing topic", assignment: domain.StoryAssignment{StoryID: "s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.coord.AcceptAssignment(context.Background(), tt.assignment)
			var invalid *InvalidInputError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestAcceptAssignment_IdempotentPerStoryID(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	first, err := p.coord.AcceptAssignment(ctx, testutil.Assignment("s1", "original topic"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, first.Status)

	// Move the story along, then re-accept with new metadata
	require.NoError(t, p.store.SetStatus(ctx, "s1", domain.StatusDraftSubmitted))

	second, err := p.coord.AcceptAssignment(ctx, testutil.Assignment("s1", "updated topic"))
	require.NoError(t, err)

	// Metadata is overwritten, lifecycle state is not
	assert.Equal(t, "updated topic", second.Topic)
	assert.Equal(t, domain.StatusDraftSubmitted, second.Status)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestProduceArticle_BeforeAcceptIsNotFound(t *testing.T) {
	p := newPipeline()

	_, err := p.coord.ProduceArticle(context.Background(), "never-accepted")

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "never-accepted", notFound.StoryID)

	// No phantom story appears
	_, err = p.store.GetAssignment(context.Background(), "never-accepted")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProduceArticle_Success(t *testing.T) {
	// Scenario: accepted assignment, one question, researcher answers,
	// archivist returns prior coverage
	p := newPipeline()
	p.archivist.Record = testutil.Archive("s1", "a1")
	p.accept(t, "s1", "T")

	result, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, "s1", result.StoryID)
	assert.Positive(t, result.WordCount)
	assert.NotEmpty(t, result.Preview)
	assert.LessOrEqual(t, len([]rune(result.Preview)), PreviewLength)
	assert.Equal(t, "queued for review", result.RoutingAck)
	assert.Empty(t, result.RoutingError)

	a, err := p.store.GetAssignment(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraftSubmitted, a.Status)

	draft, err := p.store.GetDraft(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, result.WordCount, draft.WordCount)

	// Fan-out ran exactly once each and both records were stored
	assert.Equal(t, 1, p.researcher.Calls())
	assert.Equal(t, 1, p.archivist.Calls())
	_, err = p.store.GetResearch(context.Background(), "s1")
	assert.NoError(t, err)
	_, err = p.store.GetArchive(context.Background(), "s1")
	assert.NoError(t, err)
}

func TestProduceArticle_ZeroQuestionsSkipsFanOut(t *testing.T) {
	p := newPipeline()
	p.gen.Questions = []string{}
	p.accept(t, "s1", "T")

	result, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)
	assert.Positive(t, result.WordCount)

	assert.Equal(t, 0, p.researcher.Calls())
	assert.Equal(t, 0, p.archivist.Calls())

	a, err := p.store.GetAssignment(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraftSubmitted, a.Status)
}

func TestProduceArticle_ResearcherFailureDegradesOnly(t *testing.T) {
	p := newPipeline()
	p.researcher.Err = errors.New("researcher offline")
	p.archivist.Record = testutil.Archive("s1", "a1")
	p.accept(t, "s1", "T")

	result, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)
	assert.Positive(t, result.WordCount)

	a, err := p.store.GetAssignment(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraftSubmitted, a.Status)

	// No research record; the archive record is still there
	_, err = p.store.GetResearch(context.Background(), "s1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = p.store.GetArchive(context.Background(), "s1")
	assert.NoError(t, err)
}

func TestProduceArticle_ArchivistFailureIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		record *domain.ArchiveRecord
		err    error
	}{
		{name: "transport error", err: errors.New("connection refused")},
		{name: "skipped", err: ErrArchiveSkipped},
		{name: "empty result", record: &domain.ArchiveRecord{StoryID: "s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline()
			p.archivist.Record = tt.record
			p.archivist.Err = tt.err
			p.accept(t, "s1", "T")

			_, err := p.coord.ProduceArticle(context.Background(), "s1")

			var required *RequiredDependencyFailure
			require.ErrorAs(t, err, &required)
			assert.Equal(t, "archivist", required.Collaborator)
			assert.Equal(t, "archive search", required.Stage)

			// Fatal: status error, no draft stored
			a, gerr := p.store.GetAssignment(context.Background(), "s1")
			require.NoError(t, gerr)
			assert.Equal(t, domain.StatusError, a.Status)

			_, gerr = p.store.GetDraft(context.Background(), "s1")
			assert.ErrorIs(t, gerr, storage.ErrNotFound)
		})
	}
}

func TestProduceArticle_ScenarioB_ArchivistSkippedResponse(t *testing.T) {
	// Identical to the success scenario except the archivist skips
	p := newPipeline()
	p.archivist.Err = ErrArchiveSkipped
	p.accept(t, "s1", "T")

	_, err := p.coord.ProduceArticle(context.Background(), "s1")

	var required *RequiredDependencyFailure
	require.ErrorAs(t, err, &required)

	a, gerr := p.store.GetAssignment(context.Background(), "s1")
	require.NoError(t, gerr)
	assert.Equal(t, domain.StatusError, a.Status)

	_, gerr = p.store.GetDraft(context.Background(), "s1")
	assert.ErrorIs(t, gerr, storage.ErrNotFound)
}

func TestProduceArticle_OutlineFailureIsFatal(t *testing.T) {
	p := newPipeline()
	p.gen.Err = errors.New("model offline")
	p.accept(t, "s1", "T")

	_, err := p.coord.ProduceArticle(context.Background(), "s1")

	var required *RequiredDependencyFailure
	require.ErrorAs(t, err, &required)
	assert.Equal(t, "outline generation", required.Stage)

	// No fan-out happened
	assert.Equal(t, 0, p.researcher.Calls())
	assert.Equal(t, 0, p.archivist.Calls())
}

func TestProduceArticle_RoutingFailureIsPartialSuccess(t *testing.T) {
	p := newPipeline()
	p.router.Err = errors.New("review desk unreachable")
	p.accept(t, "s1", "T")

	result, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)

	assert.Empty(t, result.RoutingAck)
	assert.Contains(t, result.RoutingError, "editorial review")

	// The draft is retained despite the failed hand-off
	_, gerr := p.store.GetDraft(context.Background(), "s1")
	assert.NoError(t, gerr)

	a, gerr := p.store.GetAssignment(context.Background(), "s1")
	require.NoError(t, gerr)
	assert.Equal(t, domain.StatusDraftSubmitted, a.Status)
}

func TestProduceArticle_ErrorStoryFailsFast(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")
	require.NoError(t, p.store.SetStatus(context.Background(), "s1", domain.StatusError))

	_, err := p.coord.ProduceArticle(context.Background(), "s1")

	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)

	// Fail fast means no collaborator was touched
	assert.Equal(t, 0, p.archivist.Calls())
}

func TestProduceArticle_InFlightMarkerRejectsSecondCall(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")

	// Simulate a concurrent producer having claimed the story
	swapped, err := p.store.CompareAndSwapStatus(context.Background(), "s1", domain.StatusAccepted, domain.StatusResearching)
	require.NoError(t, err)
	require.True(t, swapped)

	_, err = p.coord.ProduceArticle(context.Background(), "s1")
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, string(domain.StatusResearching))
}

func TestProduceArticle_RejectionNamesCurrentStatus(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")

	_, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)

	// A story that already finished production is reported as such, not as
	// still in flight
	_, err = p.coord.ProduceArticle(context.Background(), "s1")
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, string(domain.StatusDraftSubmitted))
}

func TestApplyEdits_NoDraftIsNotFound(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")

	review := &domain.EditorReview{SuggestedEdits: []string{"tighten the lede"}}
	_, err := p.coord.ApplyEdits(context.Background(), "s1", review)

	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = p.coord.ApplyEdits(context.Background(), "unknown", review)
	assert.ErrorAs(t, err, &notFound)
}

func TestApplyEdits_EmptyReviewIsInvalid(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")
	_, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)

	_, err = p.coord.ApplyEdits(context.Background(), "s1", &domain.EditorReview{})
	var invalid *InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestApplyEdits_RecomputesWordCount(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")
	produced, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)

	review := &domain.EditorReview{SuggestedEdits: []string{"add context", "fix the kicker"}}
	result, err := p.coord.ApplyEdits(context.Background(), "s1", review)
	require.NoError(t, err)

	assert.Equal(t, produced.WordCount, result.OldWordCount)
	assert.NotEqual(t, result.OldWordCount, result.WordCount)
	assert.Equal(t, 1, result.RevisionsApplied)
	assert.Equal(t, "published", result.PublishAck)

	// The stored word count matches the whitespace-token count of the content
	draft, err := p.store.GetDraft(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.CountWords(draft.Content), draft.WordCount)
	assert.Equal(t, domain.DraftRevised, draft.Status)

	a, err := p.store.GetAssignment(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, a.Status)
}

func TestApplyEdits_SecondRevisionRejected(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")
	_, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)

	review := &domain.EditorReview{SuggestedEdits: []string{"edit once"}}
	_, err = p.coord.ApplyEdits(context.Background(), "s1", review)
	require.NoError(t, err)

	_, err = p.coord.ApplyEdits(context.Background(), "s1", review)
	var invalid *InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestApplyEdits_PublishFailureDoesNotRollBack(t *testing.T) {
	p := newPipeline()
	p.publisher.Err = errors.New("cms down")
	p.accept(t, "s1", "T")
	_, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)

	review := &domain.EditorReview{SuggestedEdits: []string{"shorten"}}
	result, err := p.coord.ApplyEdits(context.Background(), "s1", review)
	require.NoError(t, err)

	assert.Empty(t, result.PublishAck)
	assert.Contains(t, result.PublishError, "publishing")

	// The revision stands
	draft, gerr := p.store.GetDraft(context.Background(), "s1")
	require.NoError(t, gerr)
	assert.Equal(t, 1, draft.RevisionsApplied)
	assert.Equal(t, domain.DraftRevised, draft.Status)
}

func TestGetStatus_IsIdempotent(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")
	p.accept(t, "s2", "U")

	for i := 0; i < 3; i++ {
		reports, err := p.coord.GetStatus(context.Background(), "s1")
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, domain.StatusAccepted, reports[0].Status)
	}

	all, err := p.coord.GetStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = p.coord.GetStatus(context.Background(), "unknown")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestProduceArticle_EmitsLifecycleEvents(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")

	_, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)

	types := p.events.EventTypes()
	assert.Equal(t, []string{
		"assignment_accepted",
		"production_started",
		"research_started",
		"research_completed",
		"writing_started",
		"draft_submitted",
		"draft_routed",
	}, types)

	for _, ev := range p.events.Events() {
		assert.Equal(t, AgentName, ev.Agent)
		assert.Equal(t, "s1", ev.StoryID)
	}
}

func TestProduceArticle_FailureEventNamesStage(t *testing.T) {
	p := newPipeline()
	p.archivist.Err = errors.New("timeout")
	p.accept(t, "s1", "T")

	_, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.Error(t, err)

	types := p.events.EventTypes()
	assert.Contains(t, types, "story_failed")
	assert.NotContains(t, types, "draft_submitted")
}

func TestIndependentStoriesDoNotInterfere(t *testing.T) {
	p := newPipeline()
	p.accept(t, "s1", "T")
	p.accept(t, "s2", "U")

	// s2's archivist outcome is scripted per-call via a fresh pipeline;
	// here both run through the same coordinator back to back
	r1, err := p.coord.ProduceArticle(context.Background(), "s1")
	require.NoError(t, err)
	r2, err := p.coord.ProduceArticle(context.Background(), "s2")
	require.NoError(t, err)

	assert.Equal(t, "s1", r1.StoryID)
	assert.Equal(t, "s2", r2.StoryID)

	a1, _ := p.store.GetAssignment(context.Background(), "s1")
	a2, _ := p.store.GetAssignment(context.Background(), "s2")
	assert.Equal(t, domain.StatusDraftSubmitted, a1.Status)
	assert.Equal(t, domain.StatusDraftSubmitted, a2.Status)
}
