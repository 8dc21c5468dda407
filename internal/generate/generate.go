package generate

import (
	"context"
	"fmt"
	"strings"

	"innervoice/internal/database"
	"innervoice/internal/llm"
)

const questionSystemPrompt = `You are a warm, curious journaling companion. The user just recorded a voice journal entry. Ask ONE short follow-up question that helps them reflect more deeply on what they shared. Keep it under 20 words, conversational, and specific to what they said.

After 3-4 exchanges, or when the conversation feels complete, close instead of asking another question. To close, respond with a brief warm sign-off such as "Thank you for sharing, that's all for now."

Respond with the question or sign-off only, no preamble.`

const tagsPrompt = `Extract up to %d short topic tags from this journal conversation. Tags are 1-2 lowercase words naming concrete themes (e.g. "work stress", "family", "running").

Conversation:
%s

Respond with ONLY this JSON:
{
    "tags": ["tag one", "tag two"]
}`

const headlinePrompt = `Write a short headline (at most 8 words) for a journal entry about these topics: %s.

Respond with ONLY this JSON:
{
    "headline": "Your headline here"
}`

const emotionsPrompt = `Identify the emotions expressed in this journal conversation. Choose ONLY from this fixed taxonomy of (category: emotions):

%s

Conversation:
%s

Respond with ONLY this JSON (zero or more items, each name paired with its category from the taxonomy):
{
    "feelings": [
        {"name": "joyful", "category": "Great"}
    ]
}`

const summaryPrompt = `Summarize this journal conversation in 2-3 sentences, written in second person ("You talked about..."). Be warm and concrete; do not invent details.

Conversation:
%s

Respond with ONLY the summary text, no JSON, no quotes.`

// stopPhrases are the closing sign-offs that terminate the interview.
// Substring matching against model free text is a known accuracy limitation;
// changing the set changes observable termination behavior.
var stopPhrases = []string{
	"thank you for sharing",
	"that's all for now",
	"we've covered everything",
}

// IsStopPhrase reports whether the generated text matches the closing-phrase
// heuristic (case-insensitive substring).
func IsStopPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range stopPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Generator produces follow-up questions and entry metadata via a
// text-generation provider.
type Generator interface {
	NextQuestion(ctx context.Context, history []llm.Message) (string, error)
	ExtractTags(ctx context.Context, text string, maxTags int) ([]string, error)
	Headline(ctx context.Context, tags []string) (*string, error)
	ClassifyEmotions(ctx context.Context, text string) ([]database.IdentifiedFeeling, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// Service implements Generator on top of an llm.Provider.
type Service struct {
	provider  llm.Provider
	maxTokens int
}

// NewService creates a generator. maxTokens bounds each model call.
func NewService(provider llm.Provider, maxTokens int) *Service {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Service{provider: provider, maxTokens: maxTokens}
}

// NextQuestion asks the model for the next follow-up question given the full
// exchange history. The system prompt is prepended on every call.
func (s *Service) NextQuestion(ctx context.Context, history []llm.Message) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("no text-generation provider available")
	}

	messages := append([]llm.Message{{Role: llm.RoleUser, Content: questionSystemPrompt}}, history...)
	reply, err := s.provider.Chat(ctx, messages, s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generating question: %w", err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("empty question from model")
	}
	return reply, nil
}

// ExtractTags derives up to maxTags short topic tags from conversation text.
func (s *Service) ExtractTags(ctx context.Context, text string, maxTags int) ([]string, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no text-generation provider available")
	}

	prompt := fmt.Sprintf(tagsPrompt, maxTags, text)
	responseText, err := s.provider.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("extracting tags: %w", err)
	}

	parsed := llm.ParseJSONResponse(responseText)
	if parsed == nil {
		return nil, fmt.Errorf("unparseable tags response")
	}

	var tags []string
	for _, t := range llm.GetStringList(parsed, "tags") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags, nil
}

// Headline derives a short headline from the extracted tags. Returns nil if
// the model produced nothing usable.
func (s *Service) Headline(ctx context.Context, tags []string) (*string, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no text-generation provider available")
	}

	prompt := fmt.Sprintf(headlinePrompt, strings.Join(tags, ", "))
	responseText, err := s.provider.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating headline: %w", err)
	}

	parsed := llm.ParseJSONResponse(responseText)
	if parsed == nil {
		return nil, nil
	}
	headline := strings.TrimSpace(llm.GetString(parsed, "headline", ""))
	if headline == "" {
		return nil, nil
	}
	return &headline, nil
}

// ClassifyEmotions identifies feelings expressed in the conversation text.
// Results outside the fixed taxonomy are dropped; an empty list is valid.
func (s *Service) ClassifyEmotions(ctx context.Context, text string) ([]database.IdentifiedFeeling, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no text-generation provider available")
	}

	prompt := fmt.Sprintf(emotionsPrompt, taxonomyText(), text)
	responseText, err := s.provider.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("classifying emotions: %w", err)
	}

	parsed := llm.ParseJSONResponse(responseText)
	if parsed == nil {
		return nil, fmt.Errorf("unparseable emotions response")
	}

	raw, ok := parsed["feelings"].([]any)
	if !ok {
		return nil, nil
	}

	var feelings []database.IdentifiedFeeling
	seen := make(map[string]bool)
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, cat, ok := ValidFeeling(
			llm.GetString(obj, "name", ""),
			llm.GetString(obj, "category", ""),
		)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		feelings = append(feelings, database.IdentifiedFeeling{Name: name, Category: cat})
	}
	return feelings, nil
}

// Summarize produces a free-text summary of the conversation.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("no text-generation provider available")
	}

	prompt := fmt.Sprintf(summaryPrompt, text)
	responseText, err := s.provider.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	return strings.TrimSpace(responseText), nil
}
