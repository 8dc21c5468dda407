package database

import "time"

// Feeling category scale, best to worst.
const (
	CategoryGreat    = "Great"
	CategoryGood     = "Good"
	CategoryFine     = "Fine"
	CategoryBad      = "Bad"
	CategoryTerrible = "Terrible"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry represents one voice journal entry.
type Entry struct {
	ID            string
	Transcript    string
	AudioPath     *string
	CreatedAt     time.Time
	Tags          []string
	Headline      *string
	Summary       *string
	Feeling       *string
	CurrentStreak int
	HighestStreak int
}

// Turn is one question-answer unit of a follow-up conversation.
type Turn struct {
	ID         string
	EntryID    string
	Question   string
	AskedAt    time.Time
	Answer     *string
	AnsweredAt *time.Time
}

// Answered reports whether the turn has received its answer.
func (t *Turn) Answered() bool {
	return t.Answer != nil
}

// Message is one role-tagged message in an entry's conversation log.
type Message struct {
	ID        string
	EntryID   string
	Role      string
	Text      string
	CreatedAt time.Time
}

// Feeling is one emotion identified from an entry's conversation.
type Feeling struct {
	ID        string
	EntryID   string
	Name      string
	Category  string
	CreatedAt time.Time
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalEntries     int
	EntriesWithTags  int
	Summarized       int
	TotalTurns       int
	AnsweredTurns    int
	TotalMessages    int
	TotalFeelings    int
	HighestStreak    int
}
