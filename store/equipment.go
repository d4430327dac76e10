package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// MetricPower is the metric type carrying an item's electrical draw in watts.
const MetricPower = "power"

// Equipment is a rack-mountable item. SizeU and PowerConsumptionW are the
// effective values: declared size, else the model default, else 1; latest
// power reading, else 0.
type Equipment struct {
	ID                int64     `json:"id"`
	RackID            *int64    `json:"rack_id"`
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	Model             string    `json:"model"`
	Vendor            string    `json:"vendor"`
	SizeU             int       `json:"size_u"`
	PowerConsumptionW float64   `json:"power_consumption_w"`
	Status            string    `json:"status"`
	PosY              float64   `json:"pos_y"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EquipmentModel supplies the default height for equipment of a given model.
type EquipmentModel struct {
	Model        string `json:"model"`
	Vendor       string `json:"vendor"`
	DefaultSizeU int    `json:"default_size_u"`
}

const equipmentSelect = `SELECT e.id, e.rack_id, e.name, e.type, e.model, e.vendor,
	COALESCE(e.size_u, m.default_size_u, 1),
	COALESCE((SELECT mt.value FROM equipment_metrics mt WHERE mt.equipment_id = e.id AND mt.metric_type = 'power' ORDER BY mt.id DESC LIMIT 1), 0),
	e.status, e.pos_y, e.created_at, e.updated_at
FROM equipment e LEFT JOIN equipment_models m ON m.model = e.model`

func scanEquipment(row rowScanner) (*Equipment, error) {
	var e Equipment
	var rackID sql.NullInt64
	var createdAt, updatedAt string
	if err := row.Scan(&e.ID, &rackID, &e.Name, &e.Type, &e.Model, &e.Vendor,
		&e.SizeU, &e.PowerConsumptionW, &e.Status, &e.PosY, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if rackID.Valid {
		e.RackID = &rackID.Int64
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// CreateEquipment inserts an item. A zero SizeU is stored as NULL so the
// model default applies.
func (db *DB) CreateEquipment(e *Equipment) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: equipment name is required", ErrInvalid)
	}
	if e.SizeU < 0 {
		return fmt.Errorf("%w: equipment size_u must be positive, got %d", ErrInvalid, e.SizeU)
	}
	if e.Status == "" {
		e.Status = "active"
	}
	var sizeU, rackID any
	if e.SizeU > 0 {
		sizeU = e.SizeU
	}
	if e.RackID != nil {
		rackID = *e.RackID
	}
	now := db.stamp()
	id, err := db.insert(`INSERT INTO equipment (rack_id, name, type, model, vendor, size_u, status, pos_y, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rackID, e.Name, e.Type, e.Model, e.Vendor, sizeU, e.Status, e.PosY, now, now)
	if err != nil {
		return fmt.Errorf("insert equipment: %w", err)
	}
	stored, err := db.GetEquipment(id)
	if err != nil {
		return err
	}
	*e = *stored
	return nil
}

func (db *DB) GetEquipment(id int64) (*Equipment, error) {
	row := db.QueryRow(db.Q(equipmentSelect+` WHERE e.id=?`), id)
	e, err := scanEquipment(row)
	if err != nil {
		return nil, notFound(err, "equipment", id)
	}
	return e, nil
}

// ListEquipmentByRack returns the rack's occupants highest first (pos_y descending).
func (db *DB) ListEquipmentByRack(rackID int64) ([]*Equipment, error) {
	return db.queryEquipment(db.Q(equipmentSelect+` WHERE e.rack_id=? ORDER BY e.pos_y DESC, e.id`), rackID)
}

func (db *DB) ListUnassignedEquipment() ([]*Equipment, error) {
	return db.queryEquipment(equipmentSelect + ` WHERE e.rack_id IS NULL ORDER BY e.id`)
}

func (db *DB) queryEquipment(query string, args ...any) ([]*Equipment, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// SetEquipmentRack reassigns an item to a rack and bumps its last-modified time.
func (db *DB) SetEquipmentRack(equipmentID, rackID int64) error {
	result, err := db.Exec(db.Q(`UPDATE equipment SET rack_id=?, updated_at=? WHERE id=?`), rackID, db.stamp(), equipmentID)
	if err != nil {
		return fmt.Errorf("set rack for equipment %d: %w", equipmentID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("equipment %d: %w", equipmentID, ErrNotFound)
	}
	return nil
}

// UpsertEquipmentModel registers or replaces a model's default height.
func (db *DB) UpsertEquipmentModel(m *EquipmentModel) error {
	if m.Model == "" {
		return fmt.Errorf("%w: model name is required", ErrInvalid)
	}
	if m.DefaultSizeU <= 0 {
		return fmt.Errorf("%w: default_size_u must be positive, got %d", ErrInvalid, m.DefaultSizeU)
	}
	_, err := db.Exec(db.Q(`INSERT INTO equipment_models (model, vendor, default_size_u) VALUES (?, ?, ?)
		ON CONFLICT (model) DO UPDATE SET vendor=excluded.vendor, default_size_u=excluded.default_size_u`),
		m.Model, m.Vendor, m.DefaultSizeU)
	return err
}

// RecordMetric appends a metric reading; the latest power reading becomes
// the item's PowerConsumptionW.
func (db *DB) RecordMetric(equipmentID int64, metricType string, value float64) error {
	if metricType == MetricPower && value < 0 {
		return fmt.Errorf("%w: power reading must not be negative", ErrInvalid)
	}
	if _, err := db.GetEquipment(equipmentID); err != nil {
		return err
	}
	_, err := db.insert(`INSERT INTO equipment_metrics (equipment_id, metric_type, value, recorded_at) VALUES (?, ?, ?, ?)`,
		equipmentID, metricType, value, db.stamp())
	return err
}
