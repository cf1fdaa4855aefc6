package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/agentrpc"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// EditorClient hands submitted drafts to the editor agent for review
type EditorClient struct {
	registry *Registry
	client   *agentrpc.Client
}

// NewEditorClient creates an editor client with the given per-call timeout
func NewEditorClient(registry *Registry, timeout time.Duration, opts ...agentrpc.ClientOption) *EditorClient {
	return &EditorClient{
		registry: registry,
		client:   agentrpc.NewClient(timeout, opts...),
	}
}

// RouteDraft forwards the draft for editorial review and returns the
// editor's acknowledgement
func (c *EditorClient) RouteDraft(ctx context.Context, a *domain.StoryAssignment, d *domain.Draft) (string, error) {
	url := c.registry.Endpoints().EditorURL
	resp, err := c.client.Call(ctx, url, agentrpc.Request{
		Action: "review_draft",
		Fields: map[string]interface{}{
			"story_id":   a.StoryID,
			"topic":      a.Topic,
			"content":    d.Content,
			"word_count": d.WordCount,
		},
	})
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("editor rejected draft for story %s: %s", a.StoryID, resp.Message)
	}
	if resp.Message != "" {
		return resp.Message, nil
	}
	return "draft received", nil
}
