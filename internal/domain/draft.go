package domain

import "time"

// DraftStatus represents the revision state of a draft
type DraftStatus string

const (
	DraftInitial DraftStatus = "draft"
	DraftRevised DraftStatus = "revised"
)

// Draft is the generated article body for a story. It is created once on
// successful generation and mutated at most once by edit integration.
type Draft struct {
	StoryID          string      `json:"story_id"`
	Content          string      `json:"content"`
	WordCount        int         `json:"word_count"`
	Status           DraftStatus `json:"status"`
	RevisionsApplied int         `json:"revisions_applied"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// NewDraft creates a draft with the word count derived from content
func NewDraft(storyID, content string) *Draft {
	now := time.Now()
	return &Draft{
		StoryID:   storyID,
		Content:   content,
		WordCount: CountWords(content),
		Status:    DraftInitial,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyRevision replaces the content, recomputes the word count and marks
// the draft revised. It is the only mutation path for a stored draft.
func (d *Draft) ApplyRevision(content string) {
	d.Content = content
	d.WordCount = CountWords(content)
	d.Status = DraftRevised
	d.RevisionsApplied++
	d.UpdatedAt = time.Now()
}

// QA is a single research question and its answer
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ResearchRecord holds the best-effort research gathered for a story.
// Write-once per story: a second write signals a workflow bug.
type ResearchRecord struct {
	StoryID     string    `json:"story_id"`
	Entries     []QA      `json:"entries"`
	CompletedAt time.Time `json:"completed_at"`
}

// ArchiveRecord holds the mandatory historical references for a story.
// Write-once per story: a second write signals a workflow bug.
type ArchiveRecord struct {
	StoryID     string    `json:"story_id"`
	References  []string  `json:"references"`
	CompletedAt time.Time `json:"completed_at"`
}

// EditorReview is the editorial feedback applied to a draft
type EditorReview struct {
	Summary        string   `json:"summary,omitempty"`
	SuggestedEdits []string `json:"suggested_edits"`
}

// IsEmpty returns true when the review carries nothing to apply
func (r *EditorReview) IsEmpty() bool {
	return r == nil || (r.Summary == "" && len(r.SuggestedEdits) == 0)
}
