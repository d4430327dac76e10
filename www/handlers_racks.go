package www

import (
	"net/http"

	"rackcore/engine"
	"rackcore/store"
)

func (h *Handlers) apiListRacks(w http.ResponseWriter, r *http.Request) {
	racks, err := h.engine.DB().ListRacks()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if racks == nil {
		racks = []*store.Rack{}
	}
	h.jsonOK(w, racks)
}

func (h *Handlers) apiGetRack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid rack id", http.StatusBadRequest)
		return
	}
	rack, err := h.engine.DB().GetRack(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.jsonOK(w, rack)
}

// apiRackSummaries serves the cached rack summaries, falling back to SQL.
func (h *Handlers) apiRackSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.engine.RackState().GetAllRackSummaries(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.jsonOK(w, summaries)
}

func (h *Handlers) apiCreateRack(w http.ResponseWriter, r *http.Request) {
	var rack store.Rack
	if err := decodeJSON(r, &rack); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	rack.ID = 0
	if rack.SizeU == 0 {
		rack.SizeU = h.engine.AppConfig().Capacity.DefaultRackSizeU
	}
	if err := h.engine.DB().CreateRack(&rack); err != nil {
		h.writeError(w, err)
		return
	}

	h.engine.Events.Emit(engine.Event{Type: engine.EventRackUpdated, Payload: engine.RackUpdatedEvent{
		RackID: rack.ID, RackName: rack.Name, Action: "created", Actor: h.actor(r),
	}})
	h.jsonStatus(w, http.StatusCreated, rack)
}

func (h *Handlers) apiUpdateRack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid rack id", http.StatusBadRequest)
		return
	}
	var patch store.RackPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	rack, err := h.engine.DB().UpdateRackFields(id, &patch)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.engine.Events.Emit(engine.Event{Type: engine.EventRackUpdated, Payload: engine.RackUpdatedEvent{
		RackID: rack.ID, RackName: rack.Name, Action: "updated", Actor: h.actor(r),
	}})
	h.jsonOK(w, rack)
}

// apiDeleteRack removes a rack; its equipment becomes unassigned.
func (h *Handlers) apiDeleteRack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid rack id", http.StatusBadRequest)
		return
	}
	rack, err := h.engine.DB().GetRack(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.engine.DB().DeleteRack(id); err != nil {
		h.writeError(w, err)
		return
	}

	h.engine.Events.Emit(engine.Event{Type: engine.EventRackUpdated, Payload: engine.RackUpdatedEvent{
		RackID: id, RackName: rack.Name, Action: "deleted", Actor: h.actor(r),
	}})
	w.WriteHeader(http.StatusNoContent)
}
