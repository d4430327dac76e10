package store

import "time"

// OutboxMaxAttempts is how many failed publishes a message gets before it is
// left in the table for inspection.
const OutboxMaxAttempts = 10

type OutboxMessage struct {
	ID        int64
	Topic     string
	Payload   []byte
	MsgType   string
	MsgKey    string
	Attempts  int
	CreatedAt time.Time
}

func (db *DB) EnqueueOutbox(topic string, payload []byte, msgType, key string) error {
	_, err := db.insert(`INSERT INTO outbox (topic, payload, msg_type, msg_key, created_at) VALUES (?, ?, ?, ?, ?)`,
		topic, payload, msgType, key, db.stamp())
	return err
}

// ListPendingOutbox returns unsent, retryable messages oldest first.
func (db *DB) ListPendingOutbox(limit int) ([]*OutboxMessage, error) {
	rows, err := db.Query(db.Q(`SELECT id, topic, payload, msg_type, msg_key, attempts, created_at FROM outbox WHERE sent_at IS NULL AND attempts < ? ORDER BY id LIMIT ?`), OutboxMaxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []*OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.MsgType, &m.MsgKey, &m.Attempts, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (db *DB) MarkOutboxSent(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE outbox SET sent_at=? WHERE id=?`), db.stamp(), id)
	return err
}

func (db *DB) MarkOutboxFailed(id int64, reason string) error {
	_, err := db.Exec(db.Q(`UPDATE outbox SET attempts=attempts+1, last_error=? WHERE id=?`), reason, id)
	return err
}
