package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdentifiedFeeling is the (name, category) pair produced by emotion
// classification, before it is persisted.
type IdentifiedFeeling struct {
	Name     string
	Category string
}

// ReplaceFeelings replaces the entry's feeling records with the new set in
// one transaction. An empty set clears the records; that is a valid outcome
// distinct from "not yet processed".
func (db *DB) ReplaceFeelings(entryID string, feelings []IdentifiedFeeling, at time.Time) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin feelings replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM identified_feelings WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("clearing feelings: %w", err)
	}

	for _, f := range feelings {
		if _, err := tx.Exec(
			`INSERT INTO identified_feelings (id, entry_id, name, category, created_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), entryID, f.Name, f.Category, formatTime(at),
		); err != nil {
			return fmt.Errorf("inserting feeling %q: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit feelings replace: %w", err)
	}
	return nil
}

// GetFeelingsForEntry returns the entry's identified feelings.
func (db *DB) GetFeelingsForEntry(entryID string) ([]Feeling, error) {
	rows, err := db.conn.Query(
		`SELECT id, entry_id, name, category, created_at
		FROM identified_feelings WHERE entry_id = ? ORDER BY created_at, name`, entryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feelings []Feeling
	for rows.Next() {
		var f Feeling
		var createdAt string
		if err := rows.Scan(&f.ID, &f.EntryID, &f.Name, &f.Category, &createdAt); err != nil {
			return nil, err
		}
		f.CreatedAt = parseTime(createdAt)
		feelings = append(feelings, f)
	}
	return feelings, rows.Err()
}
