package capacity

import "rackcore/store"

// LayoutEntry is one occupant of a rack with its packed U range.
// PositionU is 1-based; the entry covers [PositionU, PositionU+SizeU).
type LayoutEntry struct {
	EquipmentID       int64   `json:"equipment_id"`
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	PositionU         int     `json:"position_u"`
	SizeU             int     `json:"size_u"`
	PowerConsumptionW float64 `json:"power_consumption_w"`
	Status            string  `json:"status"`
}

// EndU is the first unit past the entry.
func (e LayoutEntry) EndU() int { return e.PositionU + e.SizeU }

// RackLayout is derived per request and never cached.
// AvailableU goes negative and UtilizationPercentage past 100 when a rack is overcommitted.
type RackLayout struct {
	RackID                int64         `json:"rack_id"`
	RackName              string        `json:"rack_name"`
	SizeU                 int           `json:"size_u"`
	Entries               []LayoutEntry `json:"entries"`
	TotalPowerW           float64       `json:"total_power_w"`
	UsedU                 int           `json:"used_u"`
	AvailableU            int           `json:"available_u"`
	UtilizationPercentage float64       `json:"utilization_percentage"`
}

// Entry returns the layout entry for an item, if it is in the rack.
func (l *RackLayout) Entry(equipmentID int64) (LayoutEntry, bool) {
	for _, e := range l.Entries {
		if e.EquipmentID == equipmentID {
			return e, true
		}
	}
	return LayoutEntry{}, false
}

type ViolationKind string

const (
	PowerExceeded ViolationKind = "power_exceeded"
	SpaceExceeded ViolationKind = "space_exceeded"
	RackMissing   ViolationKind = "rack_not_found"
)

// Violation is one capacity issue. Amount is the overage in W or U.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Amount  float64       `json:"amount"`
	Message string        `json:"message"`
}

func (v Violation) String() string { return v.Message }

// ValidationResult reports capacity issues as data. Valid == len(Issues) == 0.
type ValidationResult struct {
	RackID int64       `json:"rack_id"`
	Valid  bool        `json:"valid"`
	Issues []Violation `json:"issues"`
}

// Messages flattens the issues into human-readable reasons.
func (r *ValidationResult) Messages() []string {
	msgs := make([]string, len(r.Issues))
	for i, v := range r.Issues {
		msgs[i] = v.Message
	}
	return msgs
}

// Conflict names an occupant whose U range overlaps a proposed placement.
type Conflict struct {
	EquipmentID int64  `json:"equipment_id"`
	Name        string `json:"name"`
	PositionU   int    `json:"position_u"`
	SizeU       int    `json:"size_u"`
}

// ConflictResult is the outcome of a placement check. OK reflects overlaps
// only; OutOfRange is reported alongside when the interval leaves the rack.
type ConflictResult struct {
	RackID     int64      `json:"rack_id"`
	PositionU  int        `json:"position_u"`
	SizeU      int        `json:"size_u"`
	OK         bool       `json:"ok"`
	OutOfRange bool       `json:"out_of_range"`
	Conflicts  []Conflict `json:"conflicts"`
}

// Utilization percentages are 0 when the matching capacity is not declared or is 0.
// Cooling demand is taken to equal electrical draw.
type Utilization struct {
	RackID             int64   `json:"rack_id"`
	RackName           string  `json:"rack_name"`
	PowerUtilization   float64 `json:"power_utilization"`
	SpaceUtilization   float64 `json:"space_utilization"`
	CoolingUtilization float64 `json:"cooling_utilization"`
	TotalPowerW        float64 `json:"total_power_w"`
	UsedU              int     `json:"used_u"`
	SizeU              int     `json:"size_u"`
}

// MoveRequest asks to reassign an item to TargetRackID. PositionU is advisory:
// it is checked against the target layout but never stored.
type MoveRequest struct {
	EquipmentID  int64  `json:"equipment_id"`
	TargetRackID int64  `json:"target_rack_id"`
	PositionU    *int   `json:"position_u,omitempty"`
	Actor        string `json:"actor,omitempty"`
}

// MoveResult is the outcome of a migration. Moved is false on rejection, with
// Reasons and Issues describing why; no write happened in that case.
type MoveResult struct {
	Moved      bool            `json:"moved"`
	Unchanged  bool            `json:"unchanged,omitempty"`
	FromRackID *int64          `json:"from_rack_id"`
	ToRackID   int64           `json:"to_rack_id"`
	Reasons    []string        `json:"reasons,omitempty"`
	Issues     []Violation     `json:"issues,omitempty"`
	Placement  *ConflictResult `json:"placement,omitempty"`
}

// MoveEvent is what a Notifier hears about a migration attempt.
type MoveEvent struct {
	EquipmentID        int64
	EquipmentName      string
	FromRackID         *int64
	ToRackID           int64
	RequestedPositionU *int
	Reasons            []string
	Actor              string
}

// RackStore reads rack records.
type RackStore interface {
	GetRack(id int64) (*store.Rack, error)
	ListRacks() ([]*store.Rack, error)
}

// EquipmentStore reads equipment records and writes rack assignments.
type EquipmentStore interface {
	GetEquipment(id int64) (*store.Equipment, error)
	ListEquipmentByRack(rackID int64) ([]*store.Equipment, error)
	SetEquipmentRack(equipmentID, rackID int64) error
}

// MigrationRecorder keeps a history of migration attempts.
type MigrationRecorder interface {
	CreateMigration(m *store.Migration) error
}

// Notifier is told about committed and rejected migrations.
type Notifier interface {
	EquipmentMoved(ev MoveEvent)
	MoveRejected(ev MoveEvent)
}

type nopNotifier struct{}

func (nopNotifier) EquipmentMoved(MoveEvent) {}
func (nopNotifier) MoveRejected(MoveEvent)   {}
