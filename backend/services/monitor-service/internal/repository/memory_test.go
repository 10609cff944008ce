package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

func TestMemoryStoreDeleteSensorCascades(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sensor := &models.Sensor{Alias: "press", Type: models.SensorTypeFloat}
	other := &models.Sensor{Alias: "valve", Type: models.SensorTypeBoolean}
	if err := store.Sensors().Create(ctx, sensor); err != nil {
		t.Fatalf("create sensor: %v", err)
	}
	if err := store.Sensors().Create(ctx, other); err != nil {
		t.Fatalf("create other sensor: %v", err)
	}
	for i := 0; i < 5; i++ {
		dp := &models.Datapoint{SensorID: sensor.ID, Value: models.FloatValue(float64(i)), Timestamp: time.Now()}
		if err := store.Datapoints().Create(ctx, dp); err != nil {
			t.Fatalf("create datapoint: %v", err)
		}
	}
	rule := &models.AlertRule{SensorID: sensor.ID, Condition: models.GreaterThan, Value: 1, Enabled: true}
	if err := store.Alerts().Create(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	keep := &models.AlertRule{SensorID: other.ID, Condition: models.Equal, Value: 1, Enabled: true}
	if err := store.Alerts().Create(ctx, keep); err != nil {
		t.Fatalf("create other rule: %v", err)
	}

	if err := store.Sensors().Delete(ctx, sensor.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := store.Sensors().GetByID(ctx, sensor.ID); !errors.Is(err, ErrSensorNotFound) {
		t.Fatalf("get deleted sensor: %v", err)
	}
	if n := store.Datapoints().Count(sensor.ID); n != 0 {
		t.Fatalf("datapoints left: %d", n)
	}
	if _, err := store.Alerts().GetByID(ctx, rule.ID); !errors.Is(err, ErrAlertNotFound) {
		t.Fatalf("rule survived cascade: %v", err)
	}
	if _, err := store.Alerts().GetByID(ctx, keep.ID); err != nil {
		t.Fatalf("unrelated rule removed: %v", err)
	}
}

func TestMemoryDatapointsNewestFirstWithinRange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sensor := &models.Sensor{Alias: "temp", Type: models.SensorTypeInt}
	if err := store.Sensors().Create(ctx, sensor); err != nil {
		t.Fatalf("create sensor: %v", err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		dp := &models.Datapoint{SensorID: sensor.ID, Value: models.IntValue(int64(i)), Timestamp: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Datapoints().Create(ctx, dp); err != nil {
			t.Fatalf("create datapoint: %v", err)
		}
	}

	got, err := store.Datapoints().ListBySensor(ctx, sensor.ID, DatapointRange{From: base.Add(time.Hour), To: base.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Value.Interface() != int64(2) || got[1].Value.Interface() != int64(1) {
		t.Fatalf("unexpected listing %+v", got)
	}
}

func TestMemoryUsersRejectDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryStore().Users()
	if err := users.Create(ctx, &models.User{Username: "ops", PasswordHash: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := users.Create(ctx, &models.User{Username: " ops ", PasswordHash: "y"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate create: %v", err)
	}
}
