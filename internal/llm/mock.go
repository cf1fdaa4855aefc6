package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// MockGenerator is a deterministic stand-in for local runs and tests. It
// never calls an external model.
type MockGenerator struct {
	// Questions overrides the proposed research questions when non-nil
	Questions []string

	// Err makes every call fail, for exercising failure paths
	Err error
}

// Outline returns a canned outline with the scripted questions
func (m *MockGenerator) Outline(_ context.Context, a *domain.StoryAssignment) (*StoryOutline, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	questions := m.Questions
	if questions == nil {
		questions = []string{
			fmt.Sprintf("What is the latest development on %s?", a.Topic),
			fmt.Sprintf("Who is most affected by %s?", a.Topic),
		}
	}
	return &StoryOutline{
		Outline:   fmt.Sprintf("1. Lede on %s\n2. Background\n3. Outlook", a.Topic),
		Questions: capQuestions(questions),
	}, nil
}

// Compose assembles a deterministic body from the inputs
func (m *MockGenerator) Compose(_ context.Context, a *domain.StoryAssignment, outline string, research *domain.ResearchRecord, archive *domain.ArchiveRecord) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", a.Topic)
	fmt.Fprintf(&sb, "Following the outline: %s\n\n", strings.ReplaceAll(outline, "\n", " "))
	if research != nil {
		fmt.Fprintf(&sb, "Drawing on %d research answers.\n", len(research.Entries))
	}
	if archive != nil {
		fmt.Fprintf(&sb, "Grounded in %d archive references.\n", len(archive.References))
	}
	return sb.String(), nil
}

// Revise appends a marker per suggested edit so revisions change the content
func (m *MockGenerator) Revise(_ context.Context, content string, edits []string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	var sb strings.Builder
	sb.WriteString(content)
	for _, edit := range edits {
		fmt.Fprintf(&sb, "\nRevised per note: %s", edit)
	}
	return sb.String(), nil
}
