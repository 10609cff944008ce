package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

// SensorRepository stores sensors in Postgres.
type SensorRepository struct {
	db *sql.DB
}

// NewSensorRepository returns repository.
func NewSensorRepository(db *sql.DB) *SensorRepository {
	return &SensorRepository{db: db}
}

// List returns every sensor ordered by id.
func (r *SensorRepository) List(ctx context.Context) ([]models.Sensor, error) {
	const query = `
		SELECT id, alias, type, created_at, updated_at
		FROM sensors
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sensors := make([]models.Sensor, 0)
	for rows.Next() {
		var s models.Sensor
		if err := rows.Scan(&s.ID, &s.Alias, &s.Type, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sensors = append(sensors, s)
	}
	return sensors, rows.Err()
}

// GetByID fetches one sensor.
func (r *SensorRepository) GetByID(ctx context.Context, id int64) (*models.Sensor, error) {
	const query = `
		SELECT id, alias, type, created_at, updated_at
		FROM sensors
		WHERE id = $1
	`
	var s models.Sensor
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Alias, &s.Type, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSensorNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts sensor and fills its id and timestamps.
func (r *SensorRepository) Create(ctx context.Context, s *models.Sensor) error {
	const query = `
		INSERT INTO sensors (alias, type, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query, s.Alias, s.Type).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Update writes alias and type and bumps updated_at.
func (r *SensorRepository) Update(ctx context.Context, s *models.Sensor) error {
	const query = `
		UPDATE sensors
		SET alias = $2, type = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, s.ID, s.Alias, s.Type).Scan(&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSensorNotFound
	}
	return err
}

// Delete removes a sensor. Datapoints and alert rules go with it through
// ON DELETE CASCADE.
func (r *SensorRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sensors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSensorNotFound
	}
	return nil
}
