package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/service"
)

// AlertsHandlers serves alert rule CRUD.
type AlertsHandlers struct {
	alerts *service.AlertService
	logger *zap.Logger
}

// NewAlertsHandlers builds handler set.
func NewAlertsHandlers(alerts *service.AlertService, logger *zap.Logger) *AlertsHandlers {
	return &AlertsHandlers{alerts: alerts, logger: logger}
}

type alertRequest struct {
	SensorID    flexInt   `json:"sensorId"`
	Condition   *string   `json:"condition"`
	Value       flexFloat `json:"value"`
	Enabled     *bool     `json:"enabled"`
	Description *string   `json:"description"`
}

func (req alertRequest) input() service.AlertInput {
	return service.AlertInput{
		SensorID:    req.SensorID.ptr(),
		Condition:   req.Condition,
		Value:       req.Value.ptr(),
		Enabled:     req.Enabled,
		Description: req.Description,
	}
}

// List handles GET /alerts?sensorId=.
func (h *AlertsHandlers) List(w http.ResponseWriter, r *http.Request) {
	var sensorID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("sensorId")); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sensorID = id
	}

	alerts, err := h.alerts.List(r.Context(), sensorID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

// Get handles GET /alerts/{id}.
func (h *AlertsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alert, err := h.alerts.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"alert": alert})
}

// Create handles POST /alerts.
func (h *AlertsHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alert, err := h.alerts.Create(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]interface{}{"alert": alert})
}

// Update handles PUT /alerts/{id}.
func (h *AlertsHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req alertRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alert, err := h.alerts.Update(r.Context(), id, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"alert": alert})
}

// Delete handles DELETE /alerts/{id}.
func (h *AlertsHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.alerts.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeSuccess(w)
}
