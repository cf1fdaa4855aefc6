package agents

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/yuin/goldmark"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/agentrpc"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// PublisherClient hands finished articles to the publishing agent. Articles
// are composed as markdown, so the payload carries both the source text and
// a rendered HTML version for immediate display.
type PublisherClient struct {
	registry *Registry
	client   *agentrpc.Client
}

// NewPublisherClient creates a publisher client with the given per-call
// timeout
func NewPublisherClient(registry *Registry, timeout time.Duration, opts ...agentrpc.ClientOption) *PublisherClient {
	return &PublisherClient{
		registry: registry,
		client:   agentrpc.NewClient(timeout, opts...),
	}
}

// Publish forwards the revised article and returns the publisher's
// acknowledgement
func (c *PublisherClient) Publish(ctx context.Context, a *domain.StoryAssignment, d *domain.Draft) (string, error) {
	html, err := renderHTML(d.Content)
	if err != nil {
		return "", fmt.Errorf("failed to render article %s: %w", a.StoryID, err)
	}

	url := c.registry.Endpoints().PublisherURL
	resp, err := c.client.Call(ctx, url, agentrpc.Request{
		Action: "publish_story",
		Fields: map[string]interface{}{
			"story_id":     a.StoryID,
			"topic":        a.Topic,
			"priority":     string(a.Priority),
			"content":      d.Content,
			"content_html": html,
			"word_count":   d.WordCount,
		},
	})
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("publisher rejected story %s: %s", a.StoryID, resp.Message)
	}
	if resp.Message != "" {
		return resp.Message, nil
	}
	return "published", nil
}

func renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
