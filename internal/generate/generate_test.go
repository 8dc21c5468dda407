package generate

import (
	"context"
	"encoding/json"
	"testing"

	"innervoice/internal/llm"
)

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response string
	err      error
	chats    int
}

func (m *mockProvider) Chat(_ context.Context, _ []llm.Message, _ int) (string, error) {
	m.chats++
	return m.response, m.err
}

func (m *mockProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return m.Chat(ctx, nil, maxTokens)
}

func (m *mockProvider) IsConfigured() bool { return true }

func TestIsStopPhrase(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Thank you for sharing, take care!", true},
		{"THAT'S ALL FOR NOW.", true},
		{"I think we've covered everything today.", true},
		{"What made it good?", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsStopPhrase(c.text); got != c.want {
			t.Errorf("IsStopPhrase(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestNextQuestion(t *testing.T) {
	mock := &mockProvider{response: "  What made it good?  "}
	svc := NewService(mock, 512)

	q, err := svc.NextQuestion(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "I had a good day"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != "What made it good?" {
		t.Errorf("expected trimmed question, got %q", q)
	}
}

func TestNextQuestionEmptyReply(t *testing.T) {
	svc := NewService(&mockProvider{response: "  "}, 512)
	if _, err := svc.NextQuestion(context.Background(), nil); err == nil {
		t.Error("expected error for empty model reply")
	}
}

func TestExtractTagsClampsAndNormalizes(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"tags": []string{" Friends ", "GRATITUDE", "weekend", "extra", ""},
	})
	svc := NewService(&mockProvider{response: string(resp)}, 512)

	tags, err := svc.ExtractTags(context.Background(), "conversation text", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("expected cap of 3 tags, got %v", tags)
	}
	if tags[0] != "friends" || tags[1] != "gratitude" {
		t.Errorf("expected lowercased trimmed tags, got %v", tags)
	}
}

func TestExtractTagsUnparseable(t *testing.T) {
	svc := NewService(&mockProvider{response: "no json here"}, 512)
	if _, err := svc.ExtractTags(context.Background(), "text", 3); err == nil {
		t.Error("expected error for unparseable response")
	}
}

func TestHeadline(t *testing.T) {
	resp, _ := json.Marshal(map[string]string{"headline": "An Evening With Friends"})
	svc := NewService(&mockProvider{response: string(resp)}, 512)

	h, err := svc.Headline(context.Background(), []string{"friends"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h == nil || *h != "An Evening With Friends" {
		t.Errorf("unexpected headline %v", h)
	}
}

func TestHeadlineEmptyIsNil(t *testing.T) {
	resp, _ := json.Marshal(map[string]string{"headline": "   "})
	svc := NewService(&mockProvider{response: string(resp)}, 512)

	h, err := svc.Headline(context.Background(), []string{"friends"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != nil {
		t.Errorf("expected nil headline, got %q", *h)
	}
}

func TestClassifyEmotionsFiltersTaxonomy(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"feelings": []map[string]string{
			{"name": "Joyful", "category": "great"},
			{"name": "joyful", "category": "Great"},
			{"name": "invented", "category": "Great"},
			{"name": "anxious", "category": "Bad"},
			{"name": "anxious", "category": "Terrible"},
		},
	})
	svc := NewService(&mockProvider{response: string(resp)}, 512)

	feelings, err := svc.ClassifyEmotions(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feelings) != 2 {
		t.Fatalf("expected 2 valid feelings, got %v", feelings)
	}
	if feelings[0].Name != "joyful" || feelings[0].Category != "Great" {
		t.Errorf("expected canonical casing, got %+v", feelings[0])
	}
	if feelings[1].Name != "anxious" || feelings[1].Category != "Bad" {
		t.Errorf("expected anxious/Bad, got %+v", feelings[1])
	}
}

func TestClassifyEmotionsEmptyListIsValid(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{"feelings": []any{}})
	svc := NewService(&mockProvider{response: string(resp)}, 512)

	feelings, err := svc.ClassifyEmotions(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feelings) != 0 {
		t.Errorf("expected empty result, got %v", feelings)
	}
}

func TestSummarize(t *testing.T) {
	svc := NewService(&mockProvider{response: "\nYou talked about your day.\n"}, 512)
	sum, err := svc.Summarize(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != "You talked about your day." {
		t.Errorf("unexpected summary %q", sum)
	}
}

func TestValidFeeling(t *testing.T) {
	if _, _, ok := ValidFeeling("joyful", "Bad"); ok {
		t.Error("joyful is not a Bad emotion")
	}
	name, cat, ok := ValidFeeling("GRIEVING", "terrible")
	if !ok || name != "grieving" || cat != "Terrible" {
		t.Errorf("expected canonical grieving/Terrible, got %q/%q ok=%v", name, cat, ok)
	}
}
