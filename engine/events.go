package engine

const (
	EventEquipmentMoved EventType = iota + 1
	EventMoveRejected
	EventEquipmentCreated
	EventMetricRecorded
	EventRackUpdated
	EventMessagingConnected
	EventMessagingDisconnected
)

var eventNames = map[EventType]string{
	EventEquipmentMoved:        "equipment-moved",
	EventMoveRejected:          "move-rejected",
	EventEquipmentCreated:      "equipment-created",
	EventMetricRecorded:        "metric-recorded",
	EventRackUpdated:           "rack-updated",
	EventMessagingConnected:    "messaging-connected",
	EventMessagingDisconnected: "messaging-disconnected",
}

// String is the name used on the SSE stream.
func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// --- Event payloads ---

type EquipmentMovedEvent struct {
	EquipmentID   int64  `json:"equipment_id"`
	EquipmentName string `json:"equipment_name"`
	FromRackID    *int64 `json:"from_rack_id"`
	ToRackID      int64  `json:"to_rack_id"`
	Actor         string `json:"actor"`
}

type MoveRejectedEvent struct {
	EquipmentID   int64    `json:"equipment_id"`
	EquipmentName string   `json:"equipment_name"`
	ToRackID      int64    `json:"to_rack_id"`
	Reasons       []string `json:"reasons"`
	Actor         string   `json:"actor"`
}

type EquipmentCreatedEvent struct {
	EquipmentID int64  `json:"equipment_id"`
	Name        string `json:"name"`
	RackID      *int64 `json:"rack_id"`
	Actor       string `json:"actor"`
}

type MetricRecordedEvent struct {
	EquipmentID int64   `json:"equipment_id"`
	RackID      *int64  `json:"rack_id"`
	MetricType  string  `json:"metric_type"`
	Value       float64 `json:"value"`
}

type RackUpdatedEvent struct {
	RackID   int64  `json:"rack_id"`
	RackName string `json:"rack_name"`
	Action   string `json:"action"` // "created", "updated", "deleted"
	Actor    string `json:"actor"`
}

type ConnectionEvent struct {
	Detail string `json:"detail"`
}
