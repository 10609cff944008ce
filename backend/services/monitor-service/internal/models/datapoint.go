package models

import "time"

// Datapoint is one immutable reading of a sensor.
type Datapoint struct {
	ID        int64     `json:"id"`
	SensorID  int64     `json:"sensorId"`
	Value     Value     `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// DatapointView is a datapoint as listed for a chart, flagged when an enabled
// rule of its sensor matches it.
type DatapointView struct {
	Datapoint
	IsAlert    bool     `json:"isAlert"`
	AlertValue *float64 `json:"alertValue,omitempty"`
}
