package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/agentrpc"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/coordinator"
	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// ArchivistClient calls the archive-search agent through the retry layer.
// The archivist is mandatory, so every call gets the full retry budget, and
// the distinct outcomes of a well-formed reply (error status, skipped, result
// list) are surfaced as distinct results.
type ArchivistClient struct {
	registry    *Registry
	client      *agentrpc.RetryClient
	maxAttempts int
}

// ArchivistConfig carries the knobs of the archivist call path
type ArchivistConfig struct {
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	Backoff     bool
}

// NewArchivistClient creates an archivist client. The API key travels as a
// header on every attempt.
func NewArchivistClient(registry *Registry, cfg ArchivistConfig) *ArchivistClient {
	opts := []agentrpc.ClientOption{}
	if cfg.APIKey != "" {
		opts = append(opts, agentrpc.WithHeader("X-API-Key", cfg.APIKey))
	}
	return &ArchivistClient{
		registry:    registry,
		client:      agentrpc.NewRetryClient(agentrpc.NewClient(cfg.Timeout, opts...), cfg.RetryDelay, cfg.Backoff),
		maxAttempts: cfg.MaxAttempts,
	}
}

// Search asks the archivist for prior coverage of the story's topic
func (c *ArchivistClient) Search(ctx context.Context, storyID, topic, angle string) (*domain.ArchiveRecord, error) {
	url := c.registry.Endpoints().ArchivistURL
	resp, err := c.client.Call(ctx, url, agentrpc.Request{
		Action: "search_archive",
		Fields: map[string]interface{}{
			"story_id": storyID,
			"topic":    topic,
			"angle":    angle,
		},
	}, c.maxAttempts)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case "error":
		return nil, fmt.Errorf("archivist rejected story %s: %s", storyID, resp.Message)
	case "skipped":
		return nil, coordinator.ErrArchiveSkipped
	}

	// A well-formed reply with no articles is a genuine empty outcome; the
	// caller decides what an empty archive means for the story.
	return &domain.ArchiveRecord{
		StoryID:     storyID,
		References:  resp.StringSliceField("articles"),
		CompletedAt: time.Now(),
	}, nil
}
