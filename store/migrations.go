package store

import (
	"database/sql"
	"strings"
	"time"
)

const (
	MigrationCommitted = "committed"
	MigrationRejected  = "rejected"
)

// Migration records one attempt to move equipment between racks.
type Migration struct {
	ID                 int64     `json:"id"`
	EquipmentID        int64     `json:"equipment_id"`
	FromRackID         *int64    `json:"from_rack_id"`
	ToRackID           int64     `json:"to_rack_id"`
	RequestedPositionU *int      `json:"requested_position_u,omitempty"`
	Outcome            string    `json:"outcome"`
	Reasons            []string  `json:"reasons,omitempty"`
	Actor              string    `json:"actor"`
	CreatedAt          time.Time `json:"created_at"`
}

func (db *DB) CreateMigration(m *Migration) error {
	var fromID, pos any
	if m.FromRackID != nil {
		fromID = *m.FromRackID
	}
	if m.RequestedPositionU != nil {
		pos = *m.RequestedPositionU
	}
	now := db.stamp()
	id, err := db.insert(`INSERT INTO migrations (equipment_id, from_rack_id, to_rack_id, requested_position_u, outcome, reasons, actor, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.EquipmentID, fromID, m.ToRackID, pos, m.Outcome, strings.Join(m.Reasons, "\n"), m.Actor, now)
	if err != nil {
		return err
	}
	m.ID = id
	m.CreatedAt = parseTime(now)
	return nil
}

func (db *DB) ListMigrations(limit int) ([]*Migration, error) {
	rows, err := db.Query(db.Q(`SELECT id, equipment_id, from_rack_id, to_rack_id, requested_position_u, outcome, reasons, actor, created_at FROM migrations ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var migrations []*Migration
	for rows.Next() {
		var m Migration
		var createdAt, reasons string
		var fromID sql.NullInt64
		var pos sql.NullInt64
		if err := rows.Scan(&m.ID, &m.EquipmentID, &fromID, &m.ToRackID, &pos, &m.Outcome, &reasons, &m.Actor, &createdAt); err != nil {
			return nil, err
		}
		if fromID.Valid {
			m.FromRackID = &fromID.Int64
		}
		if pos.Valid {
			p := int(pos.Int64)
			m.RequestedPositionU = &p
		}
		if reasons != "" {
			m.Reasons = strings.Split(reasons, "\n")
		}
		m.CreatedAt = parseTime(createdAt)
		migrations = append(migrations, &m)
	}
	return migrations, rows.Err()
}
