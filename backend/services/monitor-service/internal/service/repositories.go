package service

import (
	"context"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/repository"
)

// SensorRepository defines sensor storage used by the services.
type SensorRepository interface {
	List(ctx context.Context) ([]models.Sensor, error)
	GetByID(ctx context.Context, id int64) (*models.Sensor, error)
	Create(ctx context.Context, s *models.Sensor) error
	Update(ctx context.Context, s *models.Sensor) error
	Delete(ctx context.Context, id int64) error
}

// DatapointRepository defines datapoint storage used by the services.
type DatapointRepository interface {
	Create(ctx context.Context, dp *models.Datapoint) error
	ListBySensor(ctx context.Context, sensorID int64, rng repository.DatapointRange) ([]models.Datapoint, error)
}

// AlertRuleRepository defines alert rule storage used by the services.
type AlertRuleRepository interface {
	List(ctx context.Context, filter repository.AlertFilter) ([]models.AlertRuleView, error)
	ListEnabledBySensor(ctx context.Context, sensorID int64) ([]models.AlertRule, error)
	GetByID(ctx context.Context, id int64) (*models.AlertRule, error)
	Create(ctx context.Context, a *models.AlertRule) error
	Update(ctx context.Context, a *models.AlertRule) error
	Delete(ctx context.Context, id int64) error
}

// UserRepository defines user storage used by the auth service.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
