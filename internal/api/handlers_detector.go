package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/adaptive-alerting/detector-registry/internal/api/respond"
	"github.com/adaptive-alerting/detector-registry/internal/detector"
	"github.com/adaptive-alerting/detector-registry/internal/model"
)

// DetectorHandler is the thin HTTP transport over the detector service.
type DetectorHandler struct {
	svc *detector.Service
}

func NewDetectorHandler(svc *detector.Service) *DetectorHandler { return &DetectorHandler{svc: svc} }

// CreateDetector POST /api/detectors
func (h *DetectorHandler) CreateDetector(w http.ResponseWriter, r *http.Request) {
	var in model.Detector
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	id, err := h.svc.CreateDetector(r.Context(), &in)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]string{"uuid": id.String(), "id": id.String()})
}

// GetDetector GET /api/detectors/{uuid}
func (h *DetectorHandler) GetDetector(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.FindByUUID(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, d)
}

// ListByCreatedBy GET /api/detectors?createdBy=alice
func (h *DetectorHandler) ListByCreatedBy(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("createdBy")
	if user == "" {
		respond.WriteBadRequest(w, "createdBy query parameter required")
		return
	}
	list, err := h.svc.FindByCreatedBy(r.Context(), user)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}

// UpdateDetector PUT /api/detectors/{uuid}
func (h *DetectorHandler) UpdateDetector(w http.ResponseWriter, r *http.Request) {
	var in model.Detector
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := h.svc.UpdateDetector(r.Context(), mux.Vars(r)["uuid"], &in); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleDetector POST /api/detectors/{uuid}/enabled
func (h *DetectorHandler) ToggleDetector(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := h.svc.ToggleDetector(r.Context(), mux.Vars(r)["uuid"], in.Enabled); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TrustDetector POST /api/detectors/{uuid}/trusted
func (h *DetectorHandler) TrustDetector(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Trusted bool `json:"trusted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := h.svc.TrustDetector(r.Context(), mux.Vars(r)["uuid"], in.Trusted); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TouchDetector POST /api/detectors/{uuid}/lastUsed
func (h *DetectorHandler) TouchDetector(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.UpdateDetectorLastUsed(r.Context(), mux.Vars(r)["uuid"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateTrainingTime POST /api/detectors/{uuid}/trainingTime
func (h *DetectorHandler) UpdateTrainingTime(w http.ResponseWriter, r *http.Request) {
	var in struct {
		NextRun int64 `json:"nextRun"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := h.svc.UpdateDetectorTrainingTime(r.Context(), mux.Vars(r)["uuid"], in.NextRun); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDetector DELETE /api/detectors/{uuid}
func (h *DetectorHandler) DeleteDetector(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDetector(r.Context(), mux.Vars(r)["uuid"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LastUpdated GET /api/detectors/lastUpdated?interval=1800
func (h *DetectorHandler) LastUpdated(w http.ResponseWriter, r *http.Request) {
	interval, err := strconv.ParseInt(r.URL.Query().Get("interval"), 10, 64)
	if err != nil {
		respond.WriteBadRequest(w, "interval query parameter must be an integer number of seconds")
		return
	}
	list, err := h.svc.GetLastUpdatedDetectors(r.Context(), interval)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}

// LastUsed GET /api/detectors/lastUsed?days=30
func (h *DetectorHandler) LastUsed(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil {
		respond.WriteBadRequest(w, "days query parameter must be an integer")
		return
	}
	list, err := h.svc.GetLastUsedDetectors(r.Context(), days)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}

// ToBeTrained GET /api/detectors/toBeTrained?timestamp=1704153600000
func (h *DetectorHandler) ToBeTrained(w http.ResponseWriter, r *http.Request) {
	ts, err := strconv.ParseInt(r.URL.Query().Get("timestamp"), 10, 64)
	if err != nil {
		respond.WriteBadRequest(w, "timestamp query parameter must be epoch milliseconds")
		return
	}
	list, err := h.svc.GetDetectorsToBeTrained(r.Context(), ts)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, list)
}

// ValidateMapping POST /api/detectorMappings/validate
func (h *DetectorHandler) ValidateMapping(w http.ResponseWriter, r *http.Request) {
	var req detector.CreateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := req.Validate(); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "valid"})
}
