package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InsertEntry persists a new journal entry. A missing ID is generated.
func (db *DB) InsertEntry(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := db.conn.Exec(
		`INSERT INTO entries (id, transcript, audio_path, created_at, tags, headline, summary, feeling, current_streak, highest_streak)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Transcript, e.AudioPath, formatTime(e.CreatedAt), joinTags(e.Tags),
		e.Headline, e.Summary, e.Feeling, e.CurrentStreak, e.HighestStreak,
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// GetEntry returns the entry with the given ID, or nil if absent.
func (db *DB) GetEntry(id string) (*Entry, error) {
	row := db.conn.QueryRow(
		`SELECT id, transcript, audio_path, created_at, tags, headline, summary, feeling, current_streak, highest_streak
		FROM entries WHERE id = ?`, id,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	return e, nil
}

// ListEntries returns all entries, most recent first.
func (db *DB) ListEntries() ([]Entry, error) {
	rows, err := db.conn.Query(
		`SELECT id, transcript, audio_path, created_at, tags, headline, summary, feeling, current_streak, highest_streak
		FROM entries ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// LatestEntry returns the most recently created entry, or nil if none exist.
func (db *DB) LatestEntry() (*Entry, error) {
	row := db.conn.QueryRow(
		`SELECT id, transcript, audio_path, created_at, tags, headline, summary, feeling, current_streak, highest_streak
		FROM entries ORDER BY created_at DESC LIMIT 1`,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest entry: %w", err)
	}
	return e, nil
}

// EntryCreationTimes returns the creation timestamps of all entries.
func (db *DB) EntryCreationTimes() ([]time.Time, error) {
	rows, err := db.conn.Query(`SELECT created_at FROM entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		times = append(times, parseTime(s))
	}
	return times, rows.Err()
}

// UpdateEntryTagsHeadline sets tags and headline in a single update.
func (db *DB) UpdateEntryTagsHeadline(id string, tags []string, headline *string) error {
	_, err := db.conn.Exec(
		`UPDATE entries SET tags = ?, headline = ? WHERE id = ?`,
		joinTags(tags), headline, id,
	)
	if err != nil {
		return fmt.Errorf("updating entry tags: %w", err)
	}
	return nil
}

// UpdateEntrySummary sets the AI-generated summary.
func (db *DB) UpdateEntrySummary(id, summary string) error {
	_, err := db.conn.Exec(`UPDATE entries SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("updating entry summary: %w", err)
	}
	return nil
}

// UpdateEntryFeeling sets the overall feeling category on the entry.
func (db *DB) UpdateEntryFeeling(id, feeling string) error {
	_, err := db.conn.Exec(`UPDATE entries SET feeling = ? WHERE id = ?`, feeling, id)
	if err != nil {
		return fmt.Errorf("updating entry feeling: %w", err)
	}
	return nil
}

// UpdateEntryStreak sets the streak counters on the entry.
func (db *DB) UpdateEntryStreak(id string, current, highest int) error {
	_, err := db.conn.Exec(
		`UPDATE entries SET current_streak = ?, highest_streak = ? WHERE id = ?`,
		current, highest, id,
	)
	if err != nil {
		return fmt.Errorf("updating entry streak: %w", err)
	}
	return nil
}

// GetStats returns aggregate statistics about the database.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	queries := []struct {
		dest  *int
		query string
	}{
		{&s.TotalEntries, `SELECT COUNT(*) FROM entries`},
		{&s.EntriesWithTags, `SELECT COUNT(*) FROM entries WHERE tags != ''`},
		{&s.Summarized, `SELECT COUNT(*) FROM entries WHERE summary IS NOT NULL`},
		{&s.TotalTurns, `SELECT COUNT(*) FROM followup_turns`},
		{&s.AnsweredTurns, `SELECT COUNT(*) FROM followup_turns WHERE answer IS NOT NULL`},
		{&s.TotalMessages, `SELECT COUNT(*) FROM conversation_messages`},
		{&s.TotalFeelings, `SELECT COUNT(*) FROM identified_feelings`},
		{&s.HighestStreak, `SELECT COALESCE(MAX(highest_streak), 0) FROM entries`},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("collecting stats: %w", err)
		}
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var createdAt, tags string
	if err := row.Scan(&e.ID, &e.Transcript, &e.AudioPath, &createdAt, &tags,
		&e.Headline, &e.Summary, &e.Feeling, &e.CurrentStreak, &e.HighestStreak); err != nil {
		return nil, err
	}
	e.CreatedAt = parseTime(createdAt)
	e.Tags = splitTags(tags)
	return &e, nil
}

// joinTags normalizes and comma-joins a tag list for storage.
func joinTags(tags []string) string {
	var clean []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
