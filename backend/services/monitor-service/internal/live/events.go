package live

import "github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"

// EventType names a live event on the wire.
type EventType string

const (
	EventDatapointCreated EventType = "datapoint-created"
	EventAlertTriggered   EventType = "alert-triggered"
)

// DatapointCreated is pushed for every ingested reading.
type DatapointCreated struct {
	Datapoint models.Datapoint `json:"datapoint"`
	Sensor    models.Sensor    `json:"sensor"`
}

// AlertTriggered is pushed once per rule a reading trips.
type AlertTriggered struct {
	Alert     models.AlertRule `json:"alert"`
	Datapoint models.Datapoint `json:"datapoint"`
	Sensor    models.Sensor    `json:"sensor"`
}

// Frame is a serialized event ready to be written by a transport.
type Frame struct {
	Event EventType
	Data  []byte
}
