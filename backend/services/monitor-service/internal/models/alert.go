package models

import (
	"encoding/json"
	"time"
)

// Comparator is the relation an alert rule checks between a reading and its
// threshold.
type Comparator string

const (
	GreaterThan    Comparator = ">"
	LessThan       Comparator = "<"
	GreaterOrEqual Comparator = ">="
	LessOrEqual    Comparator = "<="
	Equal          Comparator = "=="
	NotEqual       Comparator = "!="
)

// Comparators lists every supported comparator.
var Comparators = []Comparator{GreaterThan, LessThan, GreaterOrEqual, LessOrEqual, Equal, NotEqual}

// Valid reports whether c is a supported comparator.
func (c Comparator) Valid() bool {
	for _, known := range Comparators {
		if c == known {
			return true
		}
	}
	return false
}

// AlertRule is a threshold condition attached to one sensor.
type AlertRule struct {
	ID          int64      `json:"id"`
	SensorID    int64      `json:"sensorId"`
	Condition   Comparator `json:"condition"`
	Value       float64    `json:"value"`
	Enabled     bool       `json:"enabled"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (a AlertRule) MarshalJSON() ([]byte, error) {
	type plain AlertRule
	return json.Marshal(struct {
		plain
		MirrorID int64 `json:"_id"`
	}{plain: plain(a), MirrorID: a.ID})
}

// AlertRuleView is a rule listed together with its sensor's metadata.
type AlertRuleView struct {
	AlertRule
	Sensor *SensorSummary `json:"Sensor,omitempty"`
}

func (v AlertRuleView) MarshalJSON() ([]byte, error) {
	type plain AlertRule
	return json.Marshal(struct {
		plain
		MirrorID int64          `json:"_id"`
		Sensor   *SensorSummary `json:"Sensor,omitempty"`
	}{plain: plain(v.AlertRule), MirrorID: v.ID, Sensor: v.Sensor})
}
