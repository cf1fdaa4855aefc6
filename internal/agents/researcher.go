package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/agentrpc"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// ResearcherClient calls the researcher agent. The researcher is best-effort,
// so a single attempt is enough; the coordinator degrades on failure instead
// of retrying.
type ResearcherClient struct {
	registry *Registry
	client   *agentrpc.Client
}

// NewResearcherClient creates a researcher client with the given per-call
// timeout
func NewResearcherClient(registry *Registry, timeout time.Duration, opts ...agentrpc.ClientOption) *ResearcherClient {
	return &ResearcherClient{
		registry: registry,
		client:   agentrpc.NewClient(timeout, opts...),
	}
}

// Research asks the researcher to answer the outline questions
func (c *ResearcherClient) Research(ctx context.Context, storyID string, questions []string) (*domain.ResearchRecord, error) {
	url := c.registry.Endpoints().ResearcherURL
	resp, err := c.client.Call(ctx, url, agentrpc.Request{
		Action: "research_story",
		Fields: map[string]interface{}{
			"story_id":  storyID,
			"questions": questions,
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("researcher rejected story %s: %s", storyID, resp.Message)
	}

	answers := resp.StringSliceField("answers")
	record := &domain.ResearchRecord{
		StoryID:     storyID,
		Entries:     make([]domain.QA, 0, len(questions)),
		CompletedAt: time.Now(),
	}
	for i, q := range questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		record.Entries = append(record.Entries, domain.QA{Question: q, Answer: answer})
	}
	return record, nil
}
