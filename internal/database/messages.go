package database

// GetMessagesForEntry returns the entry's conversation log in timestamp order.
func (db *DB) GetMessagesForEntry(entryID string) ([]Message, error) {
	rows, err := db.conn.Query(
		`SELECT id, entry_id, role, text, created_at
		FROM conversation_messages WHERE entry_id = ? ORDER BY created_at`, entryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.EntryID, &m.Role, &m.Text, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
