package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/repository"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/service"
)

// SensorsHandlers serves sensor CRUD, datapoint listing and ingestion.
type SensorsHandlers struct {
	sensors *service.SensorService
	ingest  *service.IngestService
	logger  *zap.Logger
}

// NewSensorsHandlers builds handler set.
func NewSensorsHandlers(sensors *service.SensorService, ingest *service.IngestService, logger *zap.Logger) *SensorsHandlers {
	return &SensorsHandlers{sensors: sensors, ingest: ingest, logger: logger}
}

// List handles GET /sensors.
func (h *SensorsHandlers) List(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.sensors.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"sensors": sensors})
}

// Create handles POST /sensors.
func (h *SensorsHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Alias string `json:"alias"`
		Type  string `json:"type"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor, err := h.sensors.Create(r.Context(), req.Alias, req.Type)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]interface{}{"sensor": sensor})
}

// Get handles GET /sensors/{id}.
func (h *SensorsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sensor, err := h.sensors.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"sensor": sensor})
}

// Update handles PUT /sensors/{id}.
func (h *SensorsHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Alias *string `json:"alias"`
		Type  *string `json:"type"`
	}
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor, err := h.sensors.Update(r.Context(), id, service.SensorPatch{Alias: req.Alias, Type: req.Type})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"sensor": sensor})
}

// Delete handles DELETE /sensors/{id}.
func (h *SensorsHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.sensors.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeSuccess(w)
}

// Datapoints handles GET /sensors/{id}/datapoints?from=&to=&limit=.
func (h *SensorsHandlers) Datapoints(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor, points, err := h.sensors.Datapoints(r.Context(), id, rng)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"sensor": sensor, "datapoints": points})
}

// Ingest handles POST /sensors/{id}/datapoints.
func (h *SensorsHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Value     json.RawMessage `json:"value"`
		Timestamp *time.Time      `json:"timestamp"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dp, err := h.ingest.Ingest(r.Context(), id, service.IngestInput{Value: req.Value, Timestamp: req.Timestamp})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]interface{}{"datapoint": dp})
}

func parseRange(r *http.Request) (repository.DatapointRange, error) {
	var rng repository.DatapointRange
	q := r.URL.Query()

	var err error
	if rng.From, err = parseTime(q.Get("from")); err != nil {
		return rng, fmt.Errorf("invalid from: %w", err)
	}
	if rng.To, err = parseTime(q.Get("to")); err != nil {
		return rng, fmt.Errorf("invalid to: %w", err)
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return rng, fmt.Errorf("invalid limit %q", raw)
		}
		rng.Limit = limit
	}
	return rng, nil
}

// parseTime accepts RFC3339 timestamps and unix milliseconds.
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
