package journal

import (
	"fmt"
	"log"
	"time"

	"innervoice/internal/database"
	"innervoice/internal/streak"
)

// Store is the subset of persistence entry creation needs.
// *database.DB satisfies it.
type Store interface {
	InsertEntry(e *database.Entry) error
	EntryCreationTimes() ([]time.Time, error)
	LatestEntry() (*database.Entry, error)
}

// Service creates journal entries and maintains their streak counters.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates an entry service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// CreateEntry persists a new entry from a transcript. The entry's current
// streak is computed over all entries including the new one, and its highest
// streak carries forward the running maximum from the most recent prior
// entry rather than recomputing full history.
func (s *Service) CreateEntry(transcript string, audioPath *string) (*database.Entry, error) {
	if transcript == "" {
		return nil, fmt.Errorf("empty transcript")
	}

	now := s.now()

	times, err := s.store.EntryCreationTimes()
	if err != nil {
		return nil, fmt.Errorf("loading entry history: %w", err)
	}
	times = append(times, now)
	current := streak.Current(times, now)

	highest := current
	if prior, err := s.store.LatestEntry(); err != nil {
		return nil, fmt.Errorf("loading latest entry: %w", err)
	} else if prior != nil && prior.HighestStreak > highest {
		highest = prior.HighestStreak
	}

	entry := &database.Entry{
		Transcript:    transcript,
		AudioPath:     audioPath,
		CreatedAt:     now,
		CurrentStreak: current,
		HighestStreak: highest,
	}
	if err := s.store.InsertEntry(entry); err != nil {
		return nil, err
	}

	log.Printf("Created entry %s (streak %d, highest %d)", entry.ID, current, highest)
	return entry, nil
}

// NextMilestone returns the next streak goal after the given streak.
func (s *Service) NextMilestone(current int) int {
	return streak.NextMilestone(current)
}
