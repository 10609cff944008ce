package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/libs/metrics"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/alerting"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/live"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

var (
	ingestedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monitor",
			Name:      "datapoints_ingested_total",
			Help:      "Datapoints persisted by sensor type",
		},
		[]string{"type"},
	)
	triggeredCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "monitor",
			Name:      "alerts_triggered_total",
			Help:      "Alert rules tripped by ingested datapoints",
		},
	)
)

func init() {
	metrics.MustRegister(ingestedCounter, triggeredCounter)
}

// Publisher receives live events. Implementations must not block and report
// their own failures.
type Publisher interface {
	Publish(event live.EventType, payload interface{})
}

// IngestInput is one reading submitted by a writer.
type IngestInput struct {
	Value     json.RawMessage
	Timestamp *time.Time
}

// IngestService persists readings, evaluates alert rules and pushes the
// resulting events to live viewers.
type IngestService struct {
	sensors    SensorRepository
	datapoints DatapointRepository
	alerts     AlertRuleRepository
	evaluator  *alerting.Evaluator
	publisher  Publisher
	now        func() time.Time
	logger     *zap.Logger
}

// NewIngestService builds IngestService.
func NewIngestService(sensors SensorRepository, datapoints DatapointRepository, alerts AlertRuleRepository, evaluator *alerting.Evaluator, publisher Publisher, logger *zap.Logger) *IngestService {
	return &IngestService{
		sensors:    sensors,
		datapoints: datapoints,
		alerts:     alerts,
		evaluator:  evaluator,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.Named("ingest"),
	}
}

// Ingest stores a reading for sensorID and notifies live viewers. It publishes
// datapoint-created for every stored reading and one alert-triggered per
// enabled rule the reading trips. Once the write succeeds the call succeeds:
// failures while reading rules are logged, not returned.
func (s *IngestService) Ingest(ctx context.Context, sensorID int64, in IngestInput) (*models.Datapoint, error) {
	sensor, err := s.sensors.GetByID(ctx, sensorID)
	if err != nil {
		return nil, err
	}

	value, err := models.ParseValue(sensor.Type, in.Value)
	if err != nil {
		if errors.Is(err, models.ErrValueMissing) || errors.Is(err, models.ErrValueIncompatible) {
			return nil, &ValidationError{Msg: err.Error()}
		}
		return nil, err
	}

	ts := s.now()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}

	dp := &models.Datapoint{SensorID: sensor.ID, Value: value, Timestamp: ts}
	if err := s.datapoints.Create(ctx, dp); err != nil {
		return nil, fmt.Errorf("store datapoint: %w", err)
	}
	ingestedCounter.WithLabelValues(string(sensor.Type)).Inc()

	s.publisher.Publish(live.EventDatapointCreated, live.DatapointCreated{Datapoint: *dp, Sensor: *sensor})

	if !sensor.Type.Numeric() {
		return dp, nil
	}

	rules, err := s.alerts.ListEnabledBySensor(ctx, sensor.ID)
	if err != nil {
		s.logger.Error("failed to load alert rules",
			zap.Int64("sensor_id", sensor.ID),
			zap.Int64("datapoint_id", dp.ID),
			zap.Error(err))
		return dp, nil
	}

	for _, rule := range s.evaluator.Evaluate(*dp, *sensor, rules) {
		triggeredCounter.Inc()
		s.logger.Info("alert triggered",
			zap.Int64("alert_id", rule.ID),
			zap.Int64("sensor_id", sensor.ID),
			zap.String("condition", string(rule.Condition)),
			zap.Float64("threshold", rule.Value),
			zap.String("value", dp.Value.String()))
		s.publisher.Publish(live.EventAlertTriggered, live.AlertTriggered{Alert: rule, Datapoint: *dp, Sensor: *sensor})
	}
	return dp, nil
}
