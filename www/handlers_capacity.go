package www

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"rackcore/capacity"
	"rackcore/report"
)

func (h *Handlers) apiRackLayout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid rack id", http.StatusBadRequest)
		return
	}
	layout, err := h.engine.Planner().BuildLayout(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.jsonOK(w, layout)
}

// apiValidateRack returns the validation report. An unknown rack is still a
// report, served with 404.
func (h *Handlers) apiValidateRack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid rack id", http.StatusBadRequest)
		return
	}
	res, err := h.engine.Planner().Validate(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, v := range res.Issues {
		if v.Kind == capacity.RackMissing {
			h.jsonStatus(w, http.StatusNotFound, res)
			return
		}
	}
	h.jsonOK(w, res)
}

func (h *Handlers) apiRackUtilization(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid rack id", http.StatusBadRequest)
		return
	}
	u, err := h.engine.Planner().Utilization(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.jsonOK(w, u)
}

func (h *Handlers) apiFleetUtilization(w http.ResponseWriter, r *http.Request) {
	all, err := h.engine.Planner().FleetUtilization(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.jsonOK(w, all)
}

// apiCheckConflict answers GET /api/racks/{id}/conflicts?equipment=&position=.
// Overlaps are reported with 409 and the conflict list.
func (h *Handlers) apiCheckConflict(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.jsonError(w, "invalid rack id", http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	equipmentID, err := strconv.ParseInt(q.Get("equipment"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid equipment id", http.StatusBadRequest)
		return
	}
	position, err := strconv.Atoi(q.Get("position"))
	if err != nil {
		h.jsonError(w, "invalid position", http.StatusBadRequest)
		return
	}
	res, err := h.engine.Planner().CheckConflict(r.Context(), id, equipmentID, position)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !res.OK {
		h.jsonStatus(w, http.StatusConflict, res)
		return
	}
	h.jsonOK(w, res)
}

// apiFleetUtilizationXLSX serves the fleet utilization report as a workbook.
func (h *Handlers) apiFleetUtilizationXLSX(w http.ResponseWriter, r *http.Request) {
	all, err := h.engine.Planner().FleetUtilization(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	now := time.Now()
	var buf bytes.Buffer
	if err := report.WriteUtilizationXLSX(&buf, h.engine.AppConfig().SiteID, all, now); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	name := fmt.Sprintf("utilization-%s.xlsx", now.UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}
