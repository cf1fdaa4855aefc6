// Package llm provides the text-generation collaborator used by the
// coordinator for outlines, article bodies and edit integration. The wording
// of generated text is opaque to the pipeline; only the shapes matter here.
package llm

import (
	"context"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// StoryOutline is the planning output for a story: an outline plus up to
// five research questions for the fan-out step.
type StoryOutline struct {
	Outline   string   `json:"outline"`
	Questions []string `json:"questions"`
}

// MaxResearchQuestions bounds the question list requested per story
const MaxResearchQuestions = 5

// TextGenerator abstracts the text-generation collaborator so the pipeline
// can run against the real model or a deterministic stand-in.
type TextGenerator interface {
	// Outline plans the story and proposes research questions
	Outline(ctx context.Context, a *domain.StoryAssignment) (*StoryOutline, error)

	// Compose writes the article body from the outline plus whatever
	// research and archive material the fan-out produced (either may be nil)
	Compose(ctx context.Context, a *domain.StoryAssignment, outline string, research *domain.ResearchRecord, archive *domain.ArchiveRecord) (string, error)

	// Revise rewrites content applying the suggested edits
	Revise(ctx context.Context, content string, edits []string) (string, error)
}

// Settings holds the model configuration for the real generator
type Settings struct {
	Model   string
	APIKey  string
	BaseURL string
}

// capQuestions trims a question list to the allowed maximum
func capQuestions(questions []string) []string {
	if len(questions) > MaxResearchQuestions {
		return questions[:MaxResearchQuestions]
	}
	return questions
}
