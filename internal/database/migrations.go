package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    transcript TEXT NOT NULL,
    audio_path TEXT,
    created_at TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '',
    headline TEXT,
    summary TEXT,
    feeling TEXT,
    current_streak INTEGER NOT NULL DEFAULT 0,
    highest_streak INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS followup_turns (
    id TEXT PRIMARY KEY,
    entry_id TEXT NOT NULL REFERENCES entries(id),
    question TEXT NOT NULL,
    asked_at TEXT NOT NULL,
    answer TEXT,
    answered_at TEXT
);

CREATE TABLE IF NOT EXISTS conversation_messages (
    id TEXT PRIMARY KEY,
    entry_id TEXT NOT NULL REFERENCES entries(id),
    role TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
    text TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS identified_feelings (
    id TEXT PRIMARY KEY,
    entry_id TEXT NOT NULL REFERENCES entries(id),
    name TEXT NOT NULL,
    category TEXT NOT NULL CHECK(category IN ('Great', 'Good', 'Fine', 'Bad', 'Terrible')),
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);
CREATE INDEX IF NOT EXISTS idx_turns_entry ON followup_turns(entry_id);
CREATE INDEX IF NOT EXISTS idx_messages_entry ON conversation_messages(entry_id, created_at);
CREATE INDEX IF NOT EXISTS idx_feelings_entry ON identified_feelings(entry_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
