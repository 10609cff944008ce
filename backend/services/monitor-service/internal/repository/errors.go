package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrSensorNotFound represents missing sensor rows.
	ErrSensorNotFound = errors.New("sensor not found")
	// ErrAlertNotFound represents missing alert rule rows.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrUserNotFound represents missing user rows.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when inserting a duplicate username.
	ErrUsernameTaken = errors.New("username already exists")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// DatapointRange bounds a datapoint listing. Zero times leave that side open
// and a non-positive Limit returns every row.
type DatapointRange struct {
	From  time.Time
	To    time.Time
	Limit int
}

// AlertFilter narrows an alert rule listing.
type AlertFilter struct {
	SensorID int64
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// sensorReference turns a foreign key violation on sensor_id into
// ErrSensorNotFound, which is what the memory store reports when the sensor
// disappears before the insert.
func sensorReference(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrSensorNotFound
	}
	return err
}
