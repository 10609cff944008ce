package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/alerting"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/repository"
)

// SensorPatch carries the optional fields of a sensor update.
type SensorPatch struct {
	Alias *string
	Type  *string
}

// SensorService manages sensors and their chart listings.
type SensorService struct {
	sensors    SensorRepository
	datapoints DatapointRepository
	alerts     AlertRuleRepository
	evaluator  *alerting.Evaluator
	logger     *zap.Logger
}

// NewSensorService builds SensorService.
func NewSensorService(sensors SensorRepository, datapoints DatapointRepository, alerts AlertRuleRepository, evaluator *alerting.Evaluator, logger *zap.Logger) *SensorService {
	return &SensorService{
		sensors:    sensors,
		datapoints: datapoints,
		alerts:     alerts,
		evaluator:  evaluator,
		logger:     logger,
	}
}

// List returns all sensors.
func (s *SensorService) List(ctx context.Context) ([]models.Sensor, error) {
	sensors, err := s.sensors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	return sensors, nil
}

// Get returns one sensor.
func (s *SensorService) Get(ctx context.Context, id int64) (*models.Sensor, error) {
	return s.sensors.GetByID(ctx, id)
}

// Create registers a sensor.
func (s *SensorService) Create(ctx context.Context, alias, sensorType string) (*models.Sensor, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" || sensorType == "" {
		return nil, invalid("alias and type are required")
	}
	t := models.SensorType(sensorType)
	if !t.Valid() {
		return nil, invalid("invalid sensor type %q", sensorType)
	}

	sensor := &models.Sensor{Alias: alias, Type: t}
	if err := s.sensors.Create(ctx, sensor); err != nil {
		return nil, fmt.Errorf("create sensor: %w", err)
	}
	s.logger.Info("sensor created", zap.Int64("sensor_id", sensor.ID), zap.String("type", string(t)))
	return sensor, nil
}

// Update changes alias and/or type. Existing datapoints keep the value slot
// they were written with.
func (s *SensorService) Update(ctx context.Context, id int64, patch SensorPatch) (*models.Sensor, error) {
	if patch.Alias == nil && patch.Type == nil {
		return nil, invalid("alias or type is required")
	}
	if patch.Alias != nil && strings.TrimSpace(*patch.Alias) == "" {
		return nil, invalid("alias cannot be empty")
	}
	if patch.Type != nil && !models.SensorType(*patch.Type).Valid() {
		return nil, invalid("invalid sensor type %q", *patch.Type)
	}

	sensor, err := s.sensors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Alias != nil {
		sensor.Alias = strings.TrimSpace(*patch.Alias)
	}
	if patch.Type != nil {
		sensor.Type = models.SensorType(*patch.Type)
	}
	if err := s.sensors.Update(ctx, sensor); err != nil {
		return nil, err
	}
	return sensor, nil
}

// Delete removes a sensor together with its datapoints and alert rules.
func (s *SensorService) Delete(ctx context.Context, id int64) error {
	if err := s.sensors.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("sensor deleted", zap.Int64("sensor_id", id))
	return nil
}

// Datapoints returns the readings of a sensor newest first, each flagged when
// an enabled rule of the sensor matches it.
func (s *SensorService) Datapoints(ctx context.Context, id int64, rng repository.DatapointRange) (*models.Sensor, []models.DatapointView, error) {
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.From.After(rng.To) {
		return nil, nil, invalid("from must not be after to")
	}

	sensor, err := s.sensors.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	points, err := s.datapoints.ListBySensor(ctx, id, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("list datapoints: %w", err)
	}
	rules, err := s.alerts.ListEnabledBySensor(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list alert rules: %w", err)
	}

	views := make([]models.DatapointView, 0, len(points))
	for _, dp := range points {
		views = append(views, s.evaluator.Annotate(dp, *sensor, rules))
	}
	return sensor, views, nil
}
