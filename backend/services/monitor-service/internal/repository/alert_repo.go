package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

// AlertRepository stores alert rules in Postgres.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository returns repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `a.id, a.sensor_id, a.condition, a.value, a.enabled, COALESCE(a.description, ''), a.created_at, a.updated_at`

func scanAlert(row interface{ Scan(...interface{}) error }, a *models.AlertRule, extra ...interface{}) error {
	dest := append([]interface{}{
		&a.ID, &a.SensorID, &a.Condition, &a.Value, &a.Enabled, &a.Description, &a.CreatedAt, &a.UpdatedAt,
	}, extra...)
	return row.Scan(dest...)
}

// List returns rules joined with their sensor metadata, ordered by id.
func (r *AlertRepository) List(ctx context.Context, filter AlertFilter) ([]models.AlertRuleView, error) {
	query := `
		SELECT ` + alertColumns + `, s.alias, s.type
		FROM alerts a
		JOIN sensors s ON s.id = a.sensor_id`
	var args []interface{}
	if filter.SensorID > 0 {
		query += ` WHERE a.sensor_id = $1`
		args = append(args, filter.SensorID)
	}
	query += ` ORDER BY a.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]models.AlertRuleView, 0)
	for rows.Next() {
		var (
			v       models.AlertRuleView
			summary models.SensorSummary
		)
		if err := scanAlert(rows, &v.AlertRule, &summary.Alias, &summary.Type); err != nil {
			return nil, err
		}
		summary.ID = v.SensorID
		v.Sensor = &summary
		views = append(views, v)
	}
	return views, rows.Err()
}

// ListEnabledBySensor returns the enabled rules of one sensor ordered by id.
func (r *AlertRepository) ListEnabledBySensor(ctx context.Context, sensorID int64) ([]models.AlertRule, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts a
		WHERE a.sensor_id = $1 AND a.enabled = TRUE
		ORDER BY a.id`
	rows, err := r.db.QueryContext(ctx, query, sensorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.AlertRule, 0)
	for rows.Next() {
		var a models.AlertRule
		if err := scanAlert(rows, &a); err != nil {
			return nil, err
		}
		rules = append(rules, a)
	}
	return rules, rows.Err()
}

// GetByID fetches one rule.
func (r *AlertRepository) GetByID(ctx context.Context, id int64) (*models.AlertRule, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts a WHERE a.id = $1`
	var a models.AlertRule
	if err := scanAlert(r.db.QueryRowContext(ctx, query, id), &a); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a rule and fills its id and timestamps.
func (r *AlertRepository) Create(ctx context.Context, a *models.AlertRule) error {
	const query = `
		INSERT INTO alerts (sensor_id, condition, value, enabled, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, a.SensorID, a.Condition, a.Value, a.Enabled, a.Description).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return sensorReference(err)
}

// Update overwrites every mutable column of a.
func (r *AlertRepository) Update(ctx context.Context, a *models.AlertRule) error {
	const query = `
		UPDATE alerts
		SET sensor_id = $2, condition = $3, value = $4, enabled = $5, description = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, a.ID, a.SensorID, a.Condition, a.Value, a.Enabled, a.Description).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAlertNotFound
	}
	return sensorReference(err)
}

// Delete removes a rule.
func (r *AlertRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}
