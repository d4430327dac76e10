package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Rack is a physical cabinet. Nil capacities mean "not declared" (unbounded).
type Rack struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	Zone                  string    `json:"zone"`
	Status                string    `json:"status"`
	SizeU                 int       `json:"size_u"`
	TotalPowerCapacityW   *float64  `json:"total_power_capacity_w"`
	TotalCoolingCapacityW *float64  `json:"total_cooling_capacity_w"`
	PosX                  float64   `json:"pos_x"`
	PosY                  float64   `json:"pos_y"`
	PosZ                  float64   `json:"pos_z"`
	RotationY             float64   `json:"rotation_y"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// RackPatch carries the fields of a partial rack update; nil fields are left alone.
// ClearPowerCapacity / ClearCoolingCapacity reset a declared capacity to unbounded.
type RackPatch struct {
	Name                  *string  `json:"name,omitempty"`
	Zone                  *string  `json:"zone,omitempty"`
	Status                *string  `json:"status,omitempty"`
	SizeU                 *int     `json:"size_u,omitempty"`
	TotalPowerCapacityW   *float64 `json:"total_power_capacity_w,omitempty"`
	TotalCoolingCapacityW *float64 `json:"total_cooling_capacity_w,omitempty"`
	ClearPowerCapacity    bool     `json:"clear_power_capacity,omitempty"`
	ClearCoolingCapacity  bool     `json:"clear_cooling_capacity,omitempty"`
	PosX                  *float64 `json:"pos_x,omitempty"`
	PosY                  *float64 `json:"pos_y,omitempty"`
	PosZ                  *float64 `json:"pos_z,omitempty"`
	RotationY             *float64 `json:"rotation_y,omitempty"`
}

const rackColumns = `id, name, zone, status, size_u, total_power_capacity_w, total_cooling_capacity_w, pos_x, pos_y, pos_z, rotation_y, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRack(row rowScanner) (*Rack, error) {
	var r Rack
	var power, cooling sql.NullFloat64
	var createdAt, updatedAt string
	if err := row.Scan(&r.ID, &r.Name, &r.Zone, &r.Status, &r.SizeU, &power, &cooling,
		&r.PosX, &r.PosY, &r.PosZ, &r.RotationY, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if power.Valid {
		r.TotalPowerCapacityW = &power.Float64
	}
	if cooling.Valid {
		r.TotalCoolingCapacityW = &cooling.Float64
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func validateRack(r *Rack) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: rack name is required", ErrInvalid)
	}
	if r.SizeU <= 0 {
		return fmt.Errorf("%w: rack size_u must be positive, got %d", ErrInvalid, r.SizeU)
	}
	if r.TotalPowerCapacityW != nil && *r.TotalPowerCapacityW < 0 {
		return fmt.Errorf("%w: rack power capacity must not be negative", ErrInvalid)
	}
	if r.TotalCoolingCapacityW != nil && *r.TotalCoolingCapacityW < 0 {
		return fmt.Errorf("%w: rack cooling capacity must not be negative", ErrInvalid)
	}
	return nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// CreateRack inserts a rack. A zero SizeU must be defaulted by the caller.
func (db *DB) CreateRack(r *Rack) error {
	if r.Status == "" {
		r.Status = "active"
	}
	if err := validateRack(r); err != nil {
		return err
	}
	now := db.stamp()
	id, err := db.insert(`INSERT INTO racks (name, zone, status, size_u, total_power_capacity_w, total_cooling_capacity_w, pos_x, pos_y, pos_z, rotation_y, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.Zone, r.Status, r.SizeU, nullableFloat(r.TotalPowerCapacityW), nullableFloat(r.TotalCoolingCapacityW),
		r.PosX, r.PosY, r.PosZ, r.RotationY, now, now)
	if db.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%w: rack name %q already exists", ErrConflict, r.Name)
	}
	if err != nil {
		return fmt.Errorf("insert rack: %w", err)
	}
	r.ID = id
	r.CreatedAt = parseTime(now)
	r.UpdatedAt = r.CreatedAt
	return nil
}

func (db *DB) GetRack(id int64) (*Rack, error) {
	row := db.QueryRow(db.Q(`SELECT `+rackColumns+` FROM racks WHERE id=?`), id)
	r, err := scanRack(row)
	if err != nil {
		return nil, notFound(err, "rack", id)
	}
	return r, nil
}

func (db *DB) ListRacks() ([]*Rack, error) {
	rows, err := db.Query(`SELECT ` + rackColumns + ` FROM racks ORDER BY zone, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var racks []*Rack
	for rows.Next() {
		r, err := scanRack(rows)
		if err != nil {
			return nil, err
		}
		racks = append(racks, r)
	}
	return racks, rows.Err()
}

// UpdateRackFields applies a partial update and returns the stored rack.
func (db *DB) UpdateRackFields(id int64, p *RackPatch) (*Rack, error) {
	r, err := db.GetRack(id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Zone != nil {
		r.Zone = *p.Zone
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.SizeU != nil {
		r.SizeU = *p.SizeU
	}
	if p.TotalPowerCapacityW != nil {
		r.TotalPowerCapacityW = p.TotalPowerCapacityW
	}
	if p.ClearPowerCapacity {
		r.TotalPowerCapacityW = nil
	}
	if p.TotalCoolingCapacityW != nil {
		r.TotalCoolingCapacityW = p.TotalCoolingCapacityW
	}
	if p.ClearCoolingCapacity {
		r.TotalCoolingCapacityW = nil
	}
	if p.PosX != nil {
		r.PosX = *p.PosX
	}
	if p.PosY != nil {
		r.PosY = *p.PosY
	}
	if p.PosZ != nil {
		r.PosZ = *p.PosZ
	}
	if p.RotationY != nil {
		r.RotationY = *p.RotationY
	}
	if err := validateRack(r); err != nil {
		return nil, err
	}

	now := db.stamp()
	_, err = db.Exec(db.Q(`UPDATE racks SET name=?, zone=?, status=?, size_u=?, total_power_capacity_w=?, total_cooling_capacity_w=?, pos_x=?, pos_y=?, pos_z=?, rotation_y=?, updated_at=? WHERE id=?`),
		r.Name, r.Zone, r.Status, r.SizeU, nullableFloat(r.TotalPowerCapacityW), nullableFloat(r.TotalCoolingCapacityW),
		r.PosX, r.PosY, r.PosZ, r.RotationY, now, id)
	if db.dialect.IsUniqueViolation(err) {
		return nil, fmt.Errorf("%w: rack name %q already exists", ErrConflict, r.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("update rack %d: %w", id, err)
	}
	r.UpdatedAt = parseTime(now)
	return r, nil
}

func (db *DB) DeleteRack(id int64) error {
	result, err := db.Exec(db.Q(`DELETE FROM racks WHERE id=?`), id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("rack %d: %w", id, ErrNotFound)
	}
	return nil
}
