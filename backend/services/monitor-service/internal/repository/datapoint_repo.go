package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

// DatapointRepository stores readings in Postgres.
type DatapointRepository struct {
	db *sql.DB
}

// NewDatapointRepository returns repository.
func NewDatapointRepository(db *sql.DB) *DatapointRepository {
	return &DatapointRepository{db: db}
}

// Create inserts dp. The value lands in the column matching its kind.
func (r *DatapointRepository) Create(ctx context.Context, dp *models.Datapoint) error {
	const query = `
		INSERT INTO datapoints (sensor_id, value_int, value_float, value_bool, value_text, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	cols := dp.Value.Columns()
	err := r.db.QueryRowContext(ctx, query,
		dp.SensorID,
		cols.Int,
		cols.Float,
		cols.Bool,
		cols.Text,
		dp.Timestamp,
	).Scan(&dp.ID)
	return sensorReference(err)
}

// ListBySensor returns readings of one sensor, newest first.
func (r *DatapointRepository) ListBySensor(ctx context.Context, sensorID int64, rng DatapointRange) ([]models.Datapoint, error) {
	var (
		query strings.Builder
		args  = []interface{}{sensorID}
	)
	query.WriteString(`
		SELECT id, sensor_id, value_int, value_float, value_bool, value_text, timestamp
		FROM datapoints
		WHERE sensor_id = $1`)
	if !rng.From.IsZero() {
		args = append(args, rng.From)
		fmt.Fprintf(&query, " AND timestamp >= $%d", len(args))
	}
	if !rng.To.IsZero() {
		args = append(args, rng.To)
		fmt.Fprintf(&query, " AND timestamp <= $%d", len(args))
	}
	query.WriteString(" ORDER BY timestamp DESC, id DESC")
	if rng.Limit > 0 {
		args = append(args, rng.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]models.Datapoint, 0)
	for rows.Next() {
		var (
			dp   models.Datapoint
			cols models.ValueColumns
		)
		if err := rows.Scan(&dp.ID, &dp.SensorID, &cols.Int, &cols.Float, &cols.Bool, &cols.Text, &dp.Timestamp); err != nil {
			return nil, err
		}
		dp.Value = cols.Value()
		points = append(points, dp)
	}
	return points, rows.Err()
}
