package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/repository"
)

// AlertInput carries alert rule fields. Nil fields are left unchanged on
// update; on create SensorID, Condition and Value are required.
type AlertInput struct {
	SensorID    *int64
	Condition   *string
	Value       *float64
	Enabled     *bool
	Description *string
}

func (in AlertInput) empty() bool {
	return in.SensorID == nil && in.Condition == nil && in.Value == nil && in.Enabled == nil && in.Description == nil
}

// AlertService manages alert rules.
type AlertService struct {
	alerts  AlertRuleRepository
	sensors SensorRepository
	logger  *zap.Logger
}

// NewAlertService builds AlertService.
func NewAlertService(alerts AlertRuleRepository, sensors SensorRepository, logger *zap.Logger) *AlertService {
	return &AlertService{alerts: alerts, sensors: sensors, logger: logger}
}

// List returns rules with sensor metadata, optionally for one sensor.
func (s *AlertService) List(ctx context.Context, sensorID int64) ([]models.AlertRuleView, error) {
	rules, err := s.alerts.List(ctx, repository.AlertFilter{SensorID: sensorID})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return rules, nil
}

// Get returns one rule.
func (s *AlertService) Get(ctx context.Context, id int64) (*models.AlertRule, error) {
	return s.alerts.GetByID(ctx, id)
}

// Create stores a new rule. Rules are enabled unless stated otherwise.
func (s *AlertService) Create(ctx context.Context, in AlertInput) (*models.AlertRule, error) {
	if in.SensorID == nil || in.Condition == nil || in.Value == nil {
		return nil, invalid("sensorId, condition and value are required")
	}

	rule := &models.AlertRule{Enabled: true}
	if err := s.apply(ctx, rule, in); err != nil {
		return nil, err
	}
	if err := s.alerts.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("alert rule created",
		zap.Int64("alert_id", rule.ID),
		zap.Int64("sensor_id", rule.SensorID),
		zap.String("condition", string(rule.Condition)))
	return rule, nil
}

// Update applies the non-nil fields of in to rule id.
func (s *AlertService) Update(ctx context.Context, id int64, in AlertInput) (*models.AlertRule, error) {
	if in.empty() {
		return nil, invalid("no fields to update")
	}
	rule, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, rule, in); err != nil {
		return nil, err
	}
	if err := s.alerts.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Delete removes a rule.
func (s *AlertService) Delete(ctx context.Context, id int64) error {
	return s.alerts.Delete(ctx, id)
}

func (s *AlertService) apply(ctx context.Context, rule *models.AlertRule, in AlertInput) error {
	if in.Condition != nil {
		c := models.Comparator(strings.TrimSpace(*in.Condition))
		if !c.Valid() {
			return invalid("invalid condition %q", *in.Condition)
		}
		rule.Condition = c
	}
	if in.Value != nil {
		if math.IsNaN(*in.Value) || math.IsInf(*in.Value, 0) {
			return invalid("value must be a finite number")
		}
		rule.Value = *in.Value
	}
	if in.Enabled != nil {
		rule.Enabled = *in.Enabled
	}
	if in.Description != nil {
		rule.Description = strings.TrimSpace(*in.Description)
	}
	if in.SensorID != nil && *in.SensorID != rule.SensorID {
		if _, err := s.sensors.GetByID(ctx, *in.SensorID); err != nil {
			return err
		}
		rule.SensorID = *in.SensorID
	}
	return nil
}
