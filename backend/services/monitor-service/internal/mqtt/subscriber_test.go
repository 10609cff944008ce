package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/service"
)

type ingestCall struct {
	sensorID int64
	in       service.IngestInput
}

type fakeIngester struct {
	mu    sync.Mutex
	calls []ingestCall
	err   error
}

func (f *fakeIngester) Ingest(_ context.Context, sensorID int64, in service.IngestInput) (*models.Datapoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ingestCall{sensorID: sensorID, in: in})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Datapoint{SensorID: sensorID}, nil
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type failingConnector struct{ err error }

func (c failingConnector) Connect(Options, *zap.Logger) (paho.Client, error) {
	return nil, c.err
}

func TestParseMessage(t *testing.T) {
	id, in, err := ParseMessage("sensors/+/datapoints", "sensors/42/datapoints",
		[]byte(`{"value": 21.5, "timestamp": "2024-03-01T12:00:00Z"}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if id != 42 || string(in.Value) != "21.5" {
		t.Fatalf("got id %d value %s", id, in.Value)
	}
	if in.Timestamp == nil || in.Timestamp.Hour() != 12 {
		t.Fatalf("timestamp = %v", in.Timestamp)
	}
}

func TestParseMessageRejects(t *testing.T) {
	cases := map[string]struct {
		topic   string
		payload string
	}{
		"other prefix":   {"devices/42/datapoints", `{"value":1}`},
		"extra segment":  {"sensors/42/datapoints/x", `{"value":1}`},
		"non numeric id": {"sensors/boiler/datapoints", `{"value":1}`},
		"bad json":       {"sensors/42/datapoints", `{value}`},
		"no value":       {"sensors/42/datapoints", `{"timestamp":"2024-03-01T12:00:00Z"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseMessage("sensors/+/datapoints", tc.topic, []byte(tc.payload)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestHandlerIngestsValidMessages(t *testing.T) {
	ingester := &fakeIngester{}
	sub := NewSubscriber(Options{Topic: "sensors/+/datapoints"}, ingester, failingConnector{}, zap.NewNop())
	handle := sub.handler(context.Background())

	handle(nil, fakeMessage{topic: "sensors/7/datapoints", payload: []byte(`{"value":"3"}`)})
	handle(nil, fakeMessage{topic: "sensors/x/datapoints", payload: []byte(`{"value":3}`)})

	if len(ingester.calls) != 1 {
		t.Fatalf("ingest calls = %d, want 1", len(ingester.calls))
	}
	if ingester.calls[0].sensorID != 7 || string(ingester.calls[0].in.Value) != `"3"` {
		t.Fatalf("call = %+v", ingester.calls[0])
	}
}

func TestHandlerSurvivesIngestFailure(t *testing.T) {
	ingester := &fakeIngester{err: service.ErrSensorNotFound}
	sub := NewSubscriber(Options{Topic: "sensors/+/datapoints"}, ingester, failingConnector{}, zap.NewNop())

	sub.handler(context.Background())(nil, fakeMessage{topic: "sensors/9/datapoints", payload: []byte(`{"value":1}`)})
	if len(ingester.calls) != 1 {
		t.Fatalf("ingest calls = %d", len(ingester.calls))
	}
}

func TestStartValidatesTopicAndConnects(t *testing.T) {
	sub := NewSubscriber(Options{Topic: "sensors/all"}, &fakeIngester{}, failingConnector{}, zap.NewNop())
	if err := sub.Start(context.Background()); err == nil {
		t.Fatal("expected error for topic without wildcard")
	}

	boom := errors.New("broker down")
	sub = NewSubscriber(Options{Topic: "sensors/+/datapoints"}, &fakeIngester{}, failingConnector{err: boom}, zap.NewNop())
	if err := sub.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start error = %v, want %v", err, boom)
	}
	sub.Stop()
}
