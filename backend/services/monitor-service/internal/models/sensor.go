package models

import (
	"encoding/json"
	"time"
)

// SensorType is the declared kind of reading a sensor produces.
type SensorType string

const (
	SensorTypeInt     SensorType = "int"
	SensorTypeFloat   SensorType = "float"
	SensorTypeBoolean SensorType = "boolean"
	SensorTypeString  SensorType = "string"
)

// Valid reports whether t is one of the supported sensor types.
func (t SensorType) Valid() bool {
	switch t {
	case SensorTypeInt, SensorTypeFloat, SensorTypeBoolean, SensorTypeString:
		return true
	}
	return false
}

// Numeric reports whether readings of this type take part in alert evaluation.
func (t SensorType) Numeric() bool {
	return t == SensorTypeInt || t == SensorTypeFloat
}

// Sensor is a named reading source.
type Sensor struct {
	ID        int64      `json:"id"`
	Alias     string     `json:"alias"`
	Type      SensorType `json:"type"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// MarshalJSON adds the "_id" mirror of the id that browser clients key on.
func (s Sensor) MarshalJSON() ([]byte, error) {
	type plain Sensor
	return json.Marshal(struct {
		plain
		MirrorID int64 `json:"_id"`
	}{plain: plain(s), MirrorID: s.ID})
}

// SensorSummary is the sensor metadata embedded in alert rule listings.
type SensorSummary struct {
	ID    int64      `json:"id"`
	Alias string     `json:"alias"`
	Type  SensorType `json:"type"`
}

// Summary returns the listing view of s.
func (s Sensor) Summary() SensorSummary {
	return SensorSummary{ID: s.ID, Alias: s.Alias, Type: s.Type}
}
