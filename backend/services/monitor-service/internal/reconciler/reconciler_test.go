package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/client"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

type pipeSource struct {
	mu      sync.Mutex
	writers []*io.PipeWriter
}

func (s *pipeSource) Events(context.Context) (*client.Stream, error) {
	pr, pw := io.Pipe()
	s.mu.Lock()
	s.writers = append(s.writers, pw)
	s.mu.Unlock()
	return client.NewStream(pr), nil
}

func (s *pipeSource) opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writers)
}

func (s *pipeSource) write(t *testing.T, raw string) {
	t.Helper()
	s.mu.Lock()
	w := s.writers[len(s.writers)-1]
	s.mu.Unlock()
	if _, err := io.WriteString(w, raw); err != nil {
		t.Fatalf("write stream: %v", err)
	}
}

func (s *pipeSource) send(t *testing.T, event string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s.write(t, fmt.Sprintf("event: %s\ndata: %s\n\n", event, raw))
}

type fakeLoader struct {
	sensor models.Sensor
	points []models.DatapointView
}

func (l fakeLoader) Datapoints(context.Context, int64, time.Time, time.Time) (*models.Sensor, []models.DatapointView, error) {
	s := l.sensor
	return &s, append([]models.DatapointView(nil), l.points...), nil
}

type fakeNotifier struct {
	granted bool
	mu      sync.Mutex
	sent    []string
}

func (n *fakeNotifier) RequestPermission(context.Context) (bool, error) { return n.granted, nil }

func (n *fakeNotifier) Notify(_, body string) error {
	n.mu.Lock()
	n.sent = append(n.sent, body)
	n.mu.Unlock()
	return nil
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var boiler = models.Sensor{ID: 1, Alias: "boiler", Type: models.SensorTypeFloat}

func datapointEvent(id, sensorID int64, v float64, sensor models.Sensor) map[string]interface{} {
	return map[string]interface{}{
		"datapoint": models.Datapoint{ID: id, SensorID: sensorID, Value: models.FloatValue(v), Timestamp: time.Unix(id, 0).UTC()},
		"sensor":    sensor,
	}
}

func alertEvent(ruleID, datapointID int64, threshold float64, description string) map[string]interface{} {
	return map[string]interface{}{
		"alert":     models.AlertRule{ID: ruleID, SensorID: 1, Condition: models.GreaterThan, Value: threshold, Enabled: true, Description: description},
		"datapoint": models.Datapoint{ID: datapointID, SensorID: 1, Value: models.FloatValue(85)},
		"sensor":    boiler,
	}
}

type harness struct {
	source   *pipeSource
	notifier *fakeNotifier
	clock    *fakeClock
	rec      *Reconciler
	changes  chan State
	done     chan error
}

func startHarness(t *testing.T, granted bool) *harness {
	t.Helper()
	h := &harness{
		source:   &pipeSource{},
		notifier: &fakeNotifier{granted: granted},
		clock:    &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		changes:  make(chan State, 32),
		done:     make(chan error, 1),
	}
	loader := fakeLoader{
		sensor: boiler,
		points: []models.DatapointView{{Datapoint: models.Datapoint{ID: 2, SensorID: 1, Value: models.FloatValue(70)}}},
	}
	h.rec = New(h.source, loader, Options{
		SensorID: 1,
		Notifier: h.notifier,
		OnChange: func(st State) { h.changes <- st },
		Now:      h.clock.Now,
	}, zap.NewNop())

	go func() { h.done <- h.rec.Run(context.Background()) }()
	waitFor(t, time.Second, func() bool { return h.source.opened() == 1 })
	waitFor(t, time.Second, func() bool {
		h.rec.mu.Lock()
		defer h.rec.mu.Unlock()
		return h.rec.permission != permissionUnknown
	})
	h.source.write(t, "\n")
	return h
}

func (h *harness) next(t *testing.T) State {
	t.Helper()
	select {
	case st := <-h.changes:
		return st
	case <-time.After(time.Second):
		t.Fatal("no state change")
		return State{}
	}
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.rec.Close()
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestDatapointEventsFillSlotAndWatchedList(t *testing.T) {
	h := startHarness(t, false)
	defer h.stop(t)

	h.source.send(t, "datapoint-created", datapointEvent(3, 1, 85, boiler))
	st := h.next(t)
	if !st.Connected {
		t.Fatal("state not connected")
	}
	if st.LastDatapoint == nil || st.LastDatapoint.Datapoint.ID != 3 {
		t.Fatalf("last datapoint = %+v", st.LastDatapoint)
	}
	if len(st.Datapoints) != 2 || st.Datapoints[0].ID != 3 {
		t.Fatalf("datapoints = %+v", st.Datapoints)
	}
	if st.Toast == nil || st.Toast.Kind != ToastInfo || st.Toast.Message != "New data received for boiler" {
		t.Fatalf("toast = %+v", st.Toast)
	}

	h.source.send(t, "datapoint-created", datapointEvent(3, 1, 85, boiler))
	if st = h.next(t); len(st.Datapoints) != 2 {
		t.Fatalf("duplicate datapoint prepended: %d", len(st.Datapoints))
	}

	other := models.Sensor{ID: 2, Alias: "press", Type: models.SensorTypeInt}
	h.source.send(t, "datapoint-created", datapointEvent(4, 2, 1, other))
	st = h.next(t)
	if len(st.Datapoints) != 2 || st.LastDatapoint.Sensor.Alias != "press" {
		t.Fatalf("other sensor handled wrongly: %d points, last %+v", len(st.Datapoints), st.LastDatapoint)
	}
}

func TestBackdatedDatapointKeepsNewestFirstOrder(t *testing.T) {
	h := startHarness(t, false)
	defer h.stop(t)

	h.source.send(t, "datapoint-created", datapointEvent(3, 1, 85, boiler))
	h.next(t)

	backdated := datapointEvent(10, 1, 60, boiler)
	backdated["datapoint"] = models.Datapoint{ID: 10, SensorID: 1, Value: models.FloatValue(60), Timestamp: time.Unix(1, 0).UTC()}
	h.source.send(t, "datapoint-created", backdated)
	st := h.next(t)

	var ids []int64
	for _, dp := range st.Datapoints {
		ids = append(ids, dp.ID)
	}
	if fmt.Sprint(ids) != "[3 10 2]" {
		t.Fatalf("watched ids = %v, want [3 10 2]", ids)
	}
	if st.LastDatapoint == nil || st.LastDatapoint.Datapoint.ID != 10 {
		t.Fatalf("last datapoint = %+v", st.LastDatapoint)
	}
}

func TestAlertTakesPrecedenceOverInfo(t *testing.T) {
	h := startHarness(t, true)
	defer h.stop(t)

	h.source.send(t, "datapoint-created", datapointEvent(3, 1, 85, boiler))
	h.next(t)
	h.source.send(t, "alert-triggered", alertEvent(7, 3, 80, ""))
	st := h.next(t)

	if st.LastAlert == nil || st.LastAlert.Alert.ID != 7 {
		t.Fatalf("last alert = %+v", st.LastAlert)
	}
	if !st.Datapoints[0].IsAlert || st.Datapoints[0].AlertValue == nil || *st.Datapoints[0].AlertValue != 80 {
		t.Fatalf("datapoint not flagged: %+v", st.Datapoints[0])
	}
	if st.Datapoints[1].IsAlert {
		t.Fatal("unrelated datapoint flagged")
	}
	if st.Toast == nil || st.Toast.Kind != ToastAlert || st.Toast.Message != "Alert: boiler - Value > 80" {
		t.Fatalf("toast = %+v", st.Toast)
	}
	if got := h.notifier.messages(); len(got) != 1 || got[0] != "Alert: boiler - Value > 80" {
		t.Fatalf("os notifications = %v", got)
	}

	h.source.send(t, "datapoint-created", datapointEvent(5, 1, 20, boiler))
	if st = h.next(t); st.Toast == nil || st.Toast.Kind != ToastAlert {
		t.Fatalf("info replaced live alert: %+v", st.Toast)
	}

	h.clock.Advance(DefaultAlertTTL)
	if st = h.rec.State(); st.Toast != nil {
		t.Fatalf("expired toast still shown: %+v", st.Toast)
	}
	h.source.send(t, "datapoint-created", datapointEvent(6, 1, 20, boiler))
	if st = h.next(t); st.Toast == nil || st.Toast.Kind != ToastInfo {
		t.Fatalf("toast after expiry = %+v", st.Toast)
	}
}

func TestAlertsNotMirroredWithoutPermission(t *testing.T) {
	h := startHarness(t, false)
	defer h.stop(t)

	h.source.send(t, "alert-triggered", alertEvent(1, 99, 10, "too hot"))
	st := h.next(t)
	if st.Toast == nil || st.Toast.Message != "Alert: boiler - too hot" {
		t.Fatalf("toast = %+v", st.Toast)
	}
	if got := h.notifier.messages(); len(got) != 0 {
		t.Fatalf("os notifications = %v", got)
	}
}

func TestMalformedAndUnknownEventsAreIgnored(t *testing.T) {
	h := startHarness(t, false)
	defer h.stop(t)

	h.source.write(t, "event: datapoint-created\ndata: {not json\n\n")
	h.source.write(t, "event: something-else\ndata: {}\n\n")
	h.source.send(t, "datapoint-created", datapointEvent(3, 1, 85, boiler))

	st := h.next(t)
	if st.LastDatapoint == nil || st.LastDatapoint.Datapoint.ID != 3 {
		t.Fatalf("last datapoint = %+v", st.LastDatapoint)
	}
}

func TestRunAfterCloseStartsWithoutBacklog(t *testing.T) {
	h := startHarness(t, false)
	h.source.send(t, "datapoint-created", datapointEvent(3, 1, 85, boiler))
	h.next(t)
	h.stop(t)

	if st := h.rec.State(); st.Connected {
		t.Fatal("still connected after Close")
	}

	go func() { h.done <- h.rec.Run(context.Background()) }()
	waitFor(t, time.Second, func() bool { return h.source.opened() == 2 })

	st := h.rec.State()
	if st.LastDatapoint != nil || st.LastAlert != nil || st.Toast != nil {
		t.Fatalf("backlog carried over: %+v", st)
	}
	if len(st.Datapoints) != 1 {
		t.Fatalf("watched list not reloaded: %d", len(st.Datapoints))
	}
	h.stop(t)
}

func TestAlertMessage(t *testing.T) {
	rule := models.AlertRule{Condition: models.LessOrEqual, Value: 0.5}
	if got := AlertMessage(models.Sensor{}, rule); got != "Alert: Sensor - Value <= 0.5" {
		t.Fatalf("got %q", got)
	}
	rule.Description = "pressure drop"
	if got := AlertMessage(models.Sensor{Alias: "line 2"}, rule); got != "Alert: line 2 - pressure drop" {
		t.Fatalf("got %q", got)
	}
	if got := InfoMessage(models.Sensor{}); got != "New data received for sensor" {
		t.Fatalf("got %q", got)
	}
}
