package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/libs/metrics"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/service"
)

const (
	handleTimeout     = 5 * time.Second
	disconnectQuiesce = 500
)

var messageCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "monitor",
		Subsystem: "mqtt",
		Name:      "messages_received_total",
		Help:      "Count of MQTT messages received by outcome",
	},
	[]string{"result"},
)

func init() {
	metrics.MustRegister(messageCounter)
}

// Ingester stores a reading and fans it out.
type Ingester interface {
	Ingest(ctx context.Context, sensorID int64, in service.IngestInput) (*models.Datapoint, error)
}

// Options configures the broker connection.
type Options struct {
	Broker   string
	Topic    string
	ClientID string
}

// Connector instantiates a paho client connected to a broker. Tests supply an
// implementation that does not touch the network.
type Connector interface {
	Connect(opts Options, logger *zap.Logger) (paho.Client, error)
}

// NewConnector returns the real broker connector.
func NewConnector() Connector {
	return connector{}
}

type connector struct{}

func (connector) Connect(opts Options, logger *zap.Logger) (paho.Client, error) {
	clientOpts := paho.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	logger.Info("connecting to broker", zap.String("broker", opts.Broker))
	client := paho.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker: %w", token.Error())
	}
	return client, nil
}

// Subscriber feeds readings published on the broker into the ingestion path.
// The single-level wildcard in the topic carries the sensor id.
type Subscriber struct {
	opts      Options
	ingester  Ingester
	connector Connector
	logger    *zap.Logger

	mu     sync.Mutex
	client paho.Client
}

// NewSubscriber builds a Subscriber.
func NewSubscriber(opts Options, ingester Ingester, connector Connector, logger *zap.Logger) *Subscriber {
	if connector == nil {
		connector = NewConnector()
	}
	return &Subscriber{
		opts:      opts,
		ingester:  ingester,
		connector: connector,
		logger:    logger.Named("mqtt"),
	}
}

// Start connects and subscribes. Messages are handled until Stop.
func (s *Subscriber) Start(ctx context.Context) error {
	if !strings.Contains(s.opts.Topic, "+") {
		return fmt.Errorf("mqtt: topic %q has no sensor id wildcard", s.opts.Topic)
	}

	client, err := s.connector.Connect(s.opts, s.logger)
	if err != nil {
		return err
	}

	s.logger.Info("subscribing", zap.String("topic", s.opts.Topic))
	if token := client.Subscribe(s.opts.Topic, 1, s.handler(ctx)); token.Wait() && token.Error() != nil {
		client.Disconnect(disconnectQuiesce)
		return fmt.Errorf("subscribe %s: %w", s.opts.Topic, token.Error())
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Disconnect(disconnectQuiesce)
		s.client = nil
	}
}

func (s *Subscriber) handler(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		sensorID, in, err := ParseMessage(s.opts.Topic, msg.Topic(), msg.Payload())
		if err != nil {
			messageCounter.WithLabelValues("invalid").Inc()
			s.logger.Warn("discarding message", zap.String("topic", msg.Topic()), zap.Error(err))
			return
		}

		hctx, cancel := context.WithTimeout(ctx, handleTimeout)
		defer cancel()
		if _, err := s.ingester.Ingest(hctx, sensorID, in); err != nil {
			messageCounter.WithLabelValues("failed").Inc()
			s.logger.Warn("ingest failed",
				zap.String("topic", msg.Topic()),
				zap.Int64("sensor_id", sensorID),
				zap.Error(err),
			)
			return
		}
		messageCounter.WithLabelValues("ok").Inc()
	}
}

// ParseMessage extracts the sensor id from topic using the first "+" segment
// of pattern and decodes payload as {"value":...,"timestamp":...}.
func ParseMessage(pattern, topic string, payload []byte) (int64, service.IngestInput, error) {
	var in service.IngestInput

	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")
	if len(patternParts) != len(topicParts) {
		return 0, in, fmt.Errorf("topic %q does not match %q", topic, pattern)
	}

	var rawID string
	for i, p := range patternParts {
		switch p {
		case "+":
			if rawID == "" {
				rawID = topicParts[i]
			}
		case topicParts[i]:
		default:
			return 0, in, fmt.Errorf("topic %q does not match %q", topic, pattern)
		}
	}

	sensorID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || sensorID <= 0 {
		return 0, in, fmt.Errorf("invalid sensor id %q", rawID)
	}

	var body struct {
		Value     json.RawMessage `json:"value"`
		Timestamp *time.Time      `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, in, fmt.Errorf("decode payload: %w", err)
	}
	if len(body.Value) == 0 {
		return 0, in, errors.New("payload has no value")
	}
	in.Value = body.Value
	in.Timestamp = body.Timestamp
	return sensorID, in, nil
}
