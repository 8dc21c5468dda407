package analyze

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"innervoice/internal/database"
	"innervoice/internal/generate"
)

// DefaultMaxTags bounds the tag extraction stage.
const DefaultMaxTags = 3

// Store is the subset of persistence the pipeline writes through.
// *database.DB satisfies it.
type Store interface {
	GetMessagesForEntry(entryID string) ([]database.Message, error)
	UpdateEntryTagsHeadline(id string, tags []string, headline *string) error
	ReplaceFeelings(entryID string, feelings []database.IdentifiedFeeling, at time.Time) error
	UpdateEntrySummary(id, summary string) error
}

// StepResult holds the outcome of a single pipeline stage.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the outcomes of a full pipeline run.
type Result struct {
	EntryID string
	Steps   []StepResult
}

// Pipeline derives tags, headline, feelings, and a summary from an entry's
// conversation log. Each stage runs at most once per Pipeline instance; the
// completion flags are not persisted, so a fresh instance re-runs all stages
// as an idempotent overwrite.
type Pipeline struct {
	store   Store
	gen     generate.Generator
	maxTags int
	now     func() time.Time

	tagsProcessed     bool
	emotionsProcessed bool
	summaryProcessed  bool
}

// New creates a pipeline for one session.
func New(store Store, gen generate.Generator, maxTags int) *Pipeline {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	return &Pipeline{store: store, gen: gen, maxTags: maxTags, now: time.Now}
}

// Run executes the three analysis stages for the entry. Stage failures are
// logged and reported but never abort the remaining stages. Re-invoking Run
// re-attempts only stages that have not completed; a summary failure leaves
// that stage eligible, while tag and emotion failures do not.
func (p *Pipeline) Run(ctx context.Context, entryID string) *Result {
	r := &Result{EntryID: entryID}

	messages, err := p.store.GetMessagesForEntry(entryID)
	if err != nil {
		log.Printf("Error loading conversation for %s: %v", entryID, err)
		r.Steps = append(r.Steps, StepResult{Name: "Load", Err: err})
		return r
	}

	text := conversationText(messages)

	if text == "" {
		// Nothing to analyze: record the empty outcome and mark everything done.
		r.Steps = append(r.Steps, p.recordEmpty(entryID)...)
		return r
	}

	r.Steps = append(r.Steps, p.runTags(ctx, entryID, text))
	r.Steps = append(r.Steps, p.runEmotions(ctx, entryID, text))
	r.Steps = append(r.Steps, p.runSummary(ctx, entryID, text))
	return r
}

// conversationText joins the message texts in timestamp order with blank-line
// separators. Messages arrive already ordered from the store.
func conversationText(messages []database.Message) string {
	var parts []string
	for _, m := range messages {
		if t := strings.TrimSpace(m.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (p *Pipeline) recordEmpty(entryID string) []StepResult {
	var steps []StepResult

	if !p.tagsProcessed {
		p.tagsProcessed = true
		err := p.store.UpdateEntryTagsHeadline(entryID, nil, nil)
		steps = append(steps, StepResult{Name: "Tags", Summary: "empty conversation, no tags", Err: err})
	}
	if !p.emotionsProcessed {
		p.emotionsProcessed = true
		err := p.store.ReplaceFeelings(entryID, nil, p.now())
		steps = append(steps, StepResult{Name: "Emotions", Summary: "empty conversation, no feelings", Err: err})
	}
	if !p.summaryProcessed {
		p.summaryProcessed = true
		steps = append(steps, StepResult{Name: "Summary", Summary: "empty conversation, skipped"})
	}
	return steps
}

// runTags extracts tags and, if any were produced, a headline, persisting
// both in a single update. The stage marks itself processed even when the
// model call fails, so a failed extraction is not retried within the session.
func (p *Pipeline) runTags(ctx context.Context, entryID, text string) StepResult {
	if p.tagsProcessed {
		return StepResult{Name: "Tags", Summary: "already processed"}
	}
	p.tagsProcessed = true

	tags, err := p.gen.ExtractTags(ctx, text, p.maxTags)
	if err != nil {
		log.Printf("Error extracting tags for %s: %v", entryID, err)
		return StepResult{Name: "Tags", Err: err}
	}

	var headline *string
	if len(tags) > 0 {
		headline, err = p.gen.Headline(ctx, tags)
		if err != nil {
			// Keep the tags; the headline stays empty.
			log.Printf("Error generating headline for %s: %v", entryID, err)
			headline = nil
		}
	}

	if err := p.store.UpdateEntryTagsHeadline(entryID, tags, headline); err != nil {
		log.Printf("Error persisting tags for %s: %v", entryID, err)
		return StepResult{Name: "Tags", Err: err}
	}

	return StepResult{Name: "Tags", Summary: fmt.Sprintf("%d tags extracted", len(tags))}
}

// runEmotions classifies feelings and fully replaces the entry's feeling
// records, even with an empty set. Marks itself processed on model failure.
func (p *Pipeline) runEmotions(ctx context.Context, entryID, text string) StepResult {
	if p.emotionsProcessed {
		return StepResult{Name: "Emotions", Summary: "already processed"}
	}
	p.emotionsProcessed = true

	feelings, err := p.gen.ClassifyEmotions(ctx, text)
	if err != nil {
		log.Printf("Error classifying emotions for %s: %v", entryID, err)
		return StepResult{Name: "Emotions", Err: err}
	}

	if err := p.store.ReplaceFeelings(entryID, feelings, p.now()); err != nil {
		log.Printf("Error persisting feelings for %s: %v", entryID, err)
		return StepResult{Name: "Emotions", Err: err}
	}

	return StepResult{Name: "Emotions", Summary: fmt.Sprintf("%d feelings identified", len(feelings))}
}

// runSummary generates and persists the summary. Unlike the other stages it
// marks itself processed only on success, so a failure stays eligible for
// retry on an explicit re-entry into the pipeline.
func (p *Pipeline) runSummary(ctx context.Context, entryID, text string) StepResult {
	if p.summaryProcessed {
		return StepResult{Name: "Summary", Summary: "already processed"}
	}

	summary, err := p.gen.Summarize(ctx, text)
	if err != nil {
		log.Printf("Error generating summary for %s: %v", entryID, err)
		return StepResult{Name: "Summary", Err: err}
	}
	if summary == "" {
		err := fmt.Errorf("empty summary from model")
		log.Printf("Error generating summary for %s: %v", entryID, err)
		return StepResult{Name: "Summary", Err: err}
	}

	if err := p.store.UpdateEntrySummary(entryID, summary); err != nil {
		log.Printf("Error persisting summary for %s: %v", entryID, err)
		return StepResult{Name: "Summary", Err: err}
	}

	p.summaryProcessed = true
	return StepResult{Name: "Summary", Summary: "summary saved"}
}
