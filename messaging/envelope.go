package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeEquipmentMoved = "equipment.moved"
	TypeMoveRejected   = "equipment.move_rejected"
	TypeRackUpdated    = "rack.updated"
)

// Envelope wraps every outbound event.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	SiteID    string          `json:"site_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func NewEnvelope(msgType, siteID string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Type:      msgType,
		SiteID:    siteID,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

func (e *Envelope) Encode() ([]byte, error) { return json.Marshal(e) }

func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

type EquipmentMoved struct {
	EquipmentID   int64  `json:"equipment_id"`
	EquipmentName string `json:"equipment_name"`
	FromRackID    *int64 `json:"from_rack_id"`
	ToRackID      int64  `json:"to_rack_id"`
	Actor         string `json:"actor,omitempty"`
}

type MoveRejected struct {
	EquipmentID int64    `json:"equipment_id"`
	ToRackID    int64    `json:"to_rack_id"`
	Reasons     []string `json:"reasons"`
	Actor       string   `json:"actor,omitempty"`
}

type RackUpdated struct {
	RackID   int64  `json:"rack_id"`
	RackName string `json:"rack_name"`
	Action   string `json:"action"`
}
