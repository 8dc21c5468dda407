package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestEntry(t *testing.T, db *DB, transcript string) *Entry {
	t.Helper()
	e := &Entry{Transcript: transcript, CreatedAt: time.Now()}
	if err := db.InsertEntry(e); err != nil {
		t.Fatalf("inserting entry: %v", err)
	}
	return e
}

func TestInsertAndGetEntry(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "I had a good day")

	got, err := db.GetEntry(e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if got.Transcript != "I had a good day" {
		t.Errorf("unexpected transcript %q", got.Transcript)
	}
	if got.Headline != nil || got.Summary != nil {
		t.Error("new entry should have no headline or summary")
	}
}

func TestGetMissingEntry(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetEntry("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing entry")
	}
}

func TestListEntriesOrder(t *testing.T) {
	db := openTestDB(t)
	old := &Entry{Transcript: "old", CreatedAt: time.Now().Add(-time.Hour)}
	db.InsertEntry(old)
	recent := &Entry{Transcript: "recent", CreatedAt: time.Now()}
	db.InsertEntry(recent)

	entries, err := db.ListEntries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Transcript != "recent" {
		t.Errorf("expected most recent first, got %q", entries[0].Transcript)
	}
}

func TestUpdateEntryTagsHeadline(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")

	headline := "A Good Day"
	if err := db.UpdateEntryTagsHeadline(e.ID, []string{" friends ", "gratitude", ""}, &headline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := db.GetEntry(e.ID)
	if len(got.Tags) != 2 || got.Tags[0] != "friends" || got.Tags[1] != "gratitude" {
		t.Errorf("expected normalized tags, got %v", got.Tags)
	}
	if got.Headline == nil || *got.Headline != "A Good Day" {
		t.Errorf("expected headline, got %v", got.Headline)
	}
}

func TestUpdateEntryStreak(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")

	if err := db.UpdateEntryStreak(e.ID, 3, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := db.GetEntry(e.ID)
	if got.CurrentStreak != 3 || got.HighestStreak != 7 {
		t.Errorf("expected streak 3/7, got %d/%d", got.CurrentStreak, got.HighestStreak)
	}
}

func TestCreateQuestionTurnPersistsMessage(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")

	turn, err := db.CreateQuestionTurn(e.ID, "What made it good?", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.ID == "" {
		t.Error("expected generated turn ID")
	}

	msgs, _ := db.GetMessagesForEntry(e.ID)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Role != RoleAssistant || msgs[0].Text != "What made it good?" {
		t.Errorf("unexpected message %+v", msgs[0])
	}
}

func TestAnswerTurn(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")
	turn, _ := db.CreateQuestionTurn(e.ID, "What made it good?", time.Now())

	if err := db.AnswerTurn(turn.ID, "friends visited", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turns, _ := db.GetTurnsForEntry(e.ID)
	if len(turns) != 1 || !turns[0].Answered() {
		t.Fatal("expected one answered turn")
	}
	if *turns[0].Answer != "friends visited" {
		t.Errorf("unexpected answer %q", *turns[0].Answer)
	}

	msgs, _ := db.GetMessagesForEntry(e.ID)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Role != RoleUser {
		t.Errorf("expected user message second, got %s", msgs[1].Role)
	}
}

func TestAnswerTurnOnlyOnce(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")
	turn, _ := db.CreateQuestionTurn(e.ID, "Q?", time.Now())

	if err := db.AnswerTurn(turn.ID, "first", time.Now()); err != nil {
		t.Fatalf("first answer failed: %v", err)
	}
	if err := db.AnswerTurn(turn.ID, "second", time.Now()); err == nil {
		t.Fatal("expected error answering twice")
	}

	// The rejected second answer must not leave a stray message behind.
	msgs, _ := db.GetMessagesForEntry(e.ID)
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages after rejected answer, got %d", len(msgs))
	}
}

func TestMessageOrdering(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")

	base := time.Now()
	turn, _ := db.CreateQuestionTurn(e.ID, "Q1", base)
	db.AnswerTurn(turn.ID, "A1", base.Add(time.Second))
	db.CreateQuestionTurn(e.ID, "Q2", base.Add(2*time.Second))

	msgs, _ := db.GetMessagesForEntry(e.ID)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	want := []string{"Q1", "A1", "Q2"}
	for i, m := range msgs {
		if m.Text != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], m.Text)
		}
	}
}

func TestReplaceFeelings(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")

	first := []IdentifiedFeeling{
		{Name: "joyful", Category: CategoryGreat},
		{Name: "content", Category: CategoryGood},
	}
	if err := db.ReplaceFeelings(e.ID, first, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := []IdentifiedFeeling{{Name: "calm", Category: CategoryFine}}
	if err := db.ReplaceFeelings(e.ID, second, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	feelings, _ := db.GetFeelingsForEntry(e.ID)
	if len(feelings) != 1 {
		t.Fatalf("expected full replacement, got %d feelings", len(feelings))
	}
	if feelings[0].Name != "calm" || feelings[0].Category != CategoryFine {
		t.Errorf("unexpected feeling %+v", feelings[0])
	}
}

func TestReplaceFeelingsWithEmptySet(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")
	db.ReplaceFeelings(e.ID, []IdentifiedFeeling{{Name: "joyful", Category: CategoryGreat}}, time.Now())

	if err := db.ReplaceFeelings(e.ID, nil, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	feelings, _ := db.GetFeelingsForEntry(e.ID)
	if len(feelings) != 0 {
		t.Errorf("expected empty set to clear feelings, got %d", len(feelings))
	}
}

func TestReplaceFeelingsRejectsUnknownCategory(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")
	err := db.ReplaceFeelings(e.ID, []IdentifiedFeeling{{Name: "x", Category: "Meh"}}, time.Now())
	if err == nil {
		t.Error("expected category check constraint to reject unknown category")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	e := insertTestEntry(t, db, "text")
	db.UpdateEntryStreak(e.ID, 2, 5)
	turn, _ := db.CreateQuestionTurn(e.ID, "Q?", time.Now())
	db.AnswerTurn(turn.ID, "A", time.Now())

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalEntries != 1 || stats.TotalTurns != 1 || stats.AnsweredTurns != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.TotalMessages != 2 {
		t.Errorf("expected 2 messages, got %d", stats.TotalMessages)
	}
	if stats.HighestStreak != 5 {
		t.Errorf("expected highest streak 5, got %d", stats.HighestStreak)
	}
}
