package www

import (
	"net/http"

	"rackcore/capacity"
	"rackcore/engine"
	"rackcore/store"
)

type metricRequest struct {
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
}

type moveRequest struct {
	TargetRackID int64 `json:"target_rack_id"`
	PositionU    *int  `json:"position_u,omitempty"`
}

func (h *Handlers) apiListUnassigned(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.DB().ListUnassignedEquipment()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []*store.Equipment{}
	}
	h.jsonOK(w, items)
}

func (h *Handlers) apiGetEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid equipment id", http.StatusBadRequest)
		return
	}
	e, err := h.engine.DB().GetEquipment(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.jsonOK(w, e)
}

// apiCreateEquipment registers an item, optionally straight into a rack.
// Initial placement is not capacity checked; use the move endpoint for that.
func (h *Handlers) apiCreateEquipment(w http.ResponseWriter, r *http.Request) {
	var e store.Equipment
	if err := decodeJSON(r, &e); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	e.ID = 0
	if e.RackID != nil {
		if _, err := h.engine.DB().GetRack(*e.RackID); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if err := h.engine.DB().CreateEquipment(&e); err != nil {
		h.writeError(w, err)
		return
	}

	h.engine.Events.Emit(engine.Event{Type: engine.EventEquipmentCreated, Payload: engine.EquipmentCreatedEvent{
		EquipmentID: e.ID, Name: e.Name, RackID: e.RackID, Actor: h.actor(r),
	}})
	h.jsonStatus(w, http.StatusCreated, e)
}

func (h *Handlers) apiUpsertModel(w http.ResponseWriter, r *http.Request) {
	var m store.EquipmentModel
	if err := decodeJSON(r, &m); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.engine.DB().UpsertEquipmentModel(&m); err != nil {
		h.writeError(w, err)
		return
	}
	h.jsonOK(w, m)
}

func (h *Handlers) apiRecordMetric(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid equipment id", http.StatusBadRequest)
		return
	}
	var req metricRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.MetricType == "" {
		req.MetricType = store.MetricPower
	}
	if err := h.engine.DB().RecordMetric(id, req.MetricType, req.Value); err != nil {
		h.writeError(w, err)
		return
	}
	e, err := h.engine.DB().GetEquipment(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.engine.Events.Emit(engine.Event{Type: engine.EventMetricRecorded, Payload: engine.MetricRecordedEvent{
		EquipmentID: id, RackID: e.RackID, MetricType: req.MetricType, Value: req.Value,
	}})
	h.jsonOK(w, e)
}

// apiMoveEquipment migrates an item. A capacity rejection is 409 with the
// reasons; the item stays where it was.
func (h *Handlers) apiMoveEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid equipment id", http.StatusBadRequest)
		return
	}
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.engine.Planner().MoveEquipment(r.Context(), capacity.MoveRequest{
		EquipmentID:  id,
		TargetRackID: req.TargetRackID,
		PositionU:    req.PositionU,
		Actor:        h.actor(r),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !res.Moved {
		h.jsonStatus(w, http.StatusConflict, res)
		return
	}
	h.jsonOK(w, res)
}
