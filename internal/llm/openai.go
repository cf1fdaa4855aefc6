package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// OpenAIGenerator implements TextGenerator using the official openai-go SDK
// (chat completions).
type OpenAIGenerator struct {
	model string
	opts  []option.RequestOption
}

// NewOpenAIGenerator builds a generator from settings
func NewOpenAIGenerator(cfg Settings) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIGenerator{model: cfg.Model, opts: opts}, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, system, user string) (string, error) {
	client := openai.NewClient(g.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Outline plans the story and proposes up to five research questions
func (g *OpenAIGenerator) Outline(ctx context.Context, a *domain.StoryAssignment) (*StoryOutline, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan a news story on the topic: %s\n", a.Topic)
	if a.Angle != "" {
		fmt.Fprintf(&sb, "Angle: %s\n", a.Angle)
	}
	if a.TargetLength > 0 {
		fmt.Fprintf(&sb, "Target length: about %d words\n", a.TargetLength)
	}
	fmt.Fprintf(&sb, "Respond with a JSON object: {\"outline\": \"...\", \"questions\": [...]} "+
		"with at most %d research questions.", MaxResearchQuestions)

	raw, err := g.complete(ctx,
		"You are a newsroom planning assistant. Output only valid JSON, no extra prose.",
		sb.String())
	if err != nil {
		return nil, err
	}

	var out StoryOutline
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("failed to decode outline response: %w", err)
	}
	out.Questions = capQuestions(out.Questions)
	return &out, nil
}

// Compose writes the article body from the outline and gathered material
func (g *OpenAIGenerator) Compose(ctx context.Context, a *domain.StoryAssignment, outline string, research *domain.ResearchRecord, archive *domain.ArchiveRecord) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a news article on: %s\n", a.Topic)
	if a.Angle != "" {
		fmt.Fprintf(&sb, "Angle: %s\n", a.Angle)
	}
	if a.TargetLength > 0 {
		fmt.Fprintf(&sb, "Target length: about %d words\n", a.TargetLength)
	}
	fmt.Fprintf(&sb, "\nOutline:\n%s\n", outline)
	if research != nil && len(research.Entries) > 0 {
		sb.WriteString("\nResearch findings:\n")
		for _, qa := range research.Entries {
			fmt.Fprintf(&sb, "- Q: %s\n  A: %s\n", qa.Question, qa.Answer)
		}
	}
	if archive != nil && len(archive.References) > 0 {
		sb.WriteString("\nPrior coverage to ground the story in:\n")
		for _, ref := range archive.References {
			fmt.Fprintf(&sb, "- %s\n", ref)
		}
	}

	return g.complete(ctx,
		"You are a newsroom staff writer. Output the article body in Markdown, no extra commentary.",
		sb.String())
}

// Revise rewrites content applying the suggested edits
func (g *OpenAIGenerator) Revise(ctx context.Context, content string, edits []string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Rewrite the article below applying every suggested edit. " +
		"Output only the rewritten article body.\n\nSuggested edits:\n")
	for _, edit := range edits {
		fmt.Fprintf(&sb, "- %s\n", edit)
	}
	fmt.Fprintf(&sb, "\nArticle:\n%s\n", content)

	return g.complete(ctx,
		"You are a newsroom copy editor integrating editorial feedback.",
		sb.String())
}

// stripFences removes a Markdown code fence wrapper some models add around
// JSON answers
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
