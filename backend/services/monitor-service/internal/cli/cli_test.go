package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/live"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/reconciler"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{{"serve"}, {"migrate", "up"}, {"migrate", "down"}, {"watch"}} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("command %v not found: %v", path, err)
		}
	}
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv(DatabaseURLKey, "")
	if _, err := getFromEnv(DatabaseURLKey); err == nil || !strings.Contains(err.Error(), DatabaseURLKey) {
		t.Fatalf("err = %v", err)
	}
}

func TestPrinterWritesEachToastOnce(t *testing.T) {
	var out bytes.Buffer
	printState := newPrinter(&out, 1)

	expires := time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)
	dp := models.DatapointView{Datapoint: models.Datapoint{ID: 3, SensorID: 1, Value: models.FloatValue(85.5), Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}}
	st := reconciler.State{
		LastDatapoint: &live.DatapointCreated{Datapoint: dp.Datapoint, Sensor: models.Sensor{ID: 1, Alias: "boiler"}},
		Sensor:        &models.Sensor{ID: 1, Alias: "boiler"},
		Datapoints:    []models.DatapointView{dp},
		Toast:         &reconciler.Toast{Kind: reconciler.ToastInfo, Message: "New data received for boiler", ExpiresAt: expires},
	}
	printState(st)
	printState(st)

	st.Toast = &reconciler.Toast{Kind: reconciler.ToastAlert, Message: "Alert: boiler - Value > 80", ExpiresAt: expires}
	printState(st)

	want := "10:00:00  boiler=85.5\n" +
		"[info] New data received for boiler\n" +
		"[alert] Alert: boiler - Value > 80\n"
	if out.String() != want {
		t.Fatalf("output =\n%s\nwant\n%s", out.String(), want)
	}
}
