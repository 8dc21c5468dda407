package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateQuestionTurn inserts a new question turn together with its
// assistant-role conversation message in one transaction, so a crash cannot
// leave a turn without its message.
func (db *DB) CreateQuestionTurn(entryID, question string, askedAt time.Time) (*Turn, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin question turn: %w", err)
	}
	defer tx.Rollback()

	turn := &Turn{
		ID:       uuid.NewString(),
		EntryID:  entryID,
		Question: question,
		AskedAt:  askedAt,
	}

	if _, err := tx.Exec(
		`INSERT INTO followup_turns (id, entry_id, question, asked_at) VALUES (?, ?, ?, ?)`,
		turn.ID, turn.EntryID, turn.Question, formatTime(turn.AskedAt),
	); err != nil {
		return nil, fmt.Errorf("inserting turn: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO conversation_messages (id, entry_id, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), entryID, RoleAssistant, question, formatTime(askedAt),
	); err != nil {
		return nil, fmt.Errorf("inserting question message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit question turn: %w", err)
	}
	return turn, nil
}

// AnswerTurn records the answer on an unanswered turn and appends the
// user-role conversation message in one transaction. The answer fields are
// set at most once; answering an already-answered turn is an error.
func (db *DB) AnswerTurn(turnID, answer string, answeredAt time.Time) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin answer turn: %w", err)
	}
	defer tx.Rollback()

	var entryID string
	err = tx.QueryRow(`SELECT entry_id FROM followup_turns WHERE id = ?`, turnID).Scan(&entryID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("turn %s not found", turnID)
	}
	if err != nil {
		return fmt.Errorf("looking up turn: %w", err)
	}

	res, err := tx.Exec(
		`UPDATE followup_turns SET answer = ?, answered_at = ? WHERE id = ? AND answer IS NULL`,
		answer, formatTime(answeredAt), turnID,
	)
	if err != nil {
		return fmt.Errorf("updating turn answer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking answer update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("turn %s already answered", turnID)
	}

	if _, err := tx.Exec(
		`INSERT INTO conversation_messages (id, entry_id, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), entryID, RoleUser, answer, formatTime(answeredAt),
	); err != nil {
		return fmt.Errorf("inserting answer message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit answer turn: %w", err)
	}
	return nil
}

// GetTurnsForEntry returns the entry's turns in the order they were asked.
func (db *DB) GetTurnsForEntry(entryID string) ([]Turn, error) {
	rows, err := db.conn.Query(
		`SELECT id, entry_id, question, asked_at, answer, answered_at
		FROM followup_turns WHERE entry_id = ? ORDER BY asked_at`, entryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var askedAt string
		var answeredAt *string
		if err := rows.Scan(&t.ID, &t.EntryID, &t.Question, &askedAt, &t.Answer, &answeredAt); err != nil {
			return nil, err
		}
		t.AskedAt = parseTime(askedAt)
		if answeredAt != nil {
			at := parseTime(*answeredAt)
			t.AnsweredAt = &at
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
