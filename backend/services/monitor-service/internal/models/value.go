package models

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags which slot of a Value is populated.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindInt
	KindFloat
	KindBool
	KindText
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindText:
		return "string"
	}
	return "none"
}

var (
	// ErrValueMissing is returned when a reading has no value at all.
	ErrValueMissing = errors.New("value is required")
	// ErrValueIncompatible is returned when a reading cannot be stored in the
	// slot of the sensor's declared type.
	ErrValueIncompatible = errors.New("value is not compatible with sensor type")
)

// Value is a single reading. Exactly one of its slots is populated.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	b    bool
	s    string
}

func IntValue(v int64) Value     { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }
func BoolValue(v bool) Value     { return Value{kind: KindBool, b: v} }
func TextValue(v string) Value   { return Value{kind: KindText, s: v} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsZero() bool    { return v.kind == KindNone }

// Float returns the reading as a float64 when it is numeric.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Interface returns the reading as a plain Go value.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindText:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindText:
		return v.s
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return nil, fmt.Errorf("value: %v cannot be encoded", v.f)
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON keeps the JSON type of the reading without any sensor context.
// Whole numbers decode as ints, other numbers as floats.
func (v *Value) UnmarshalJSON(raw []byte) error {
	var decoded Value
	var err error
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		decoded = Value{}
	case trimmed[0] == '"':
		var s string
		err = json.Unmarshal(trimmed, &s)
		decoded = TextValue(s)
	case bytes.Equal(trimmed, []byte("true")), bytes.Equal(trimmed, []byte("false")):
		decoded = BoolValue(trimmed[0] == 't')
	default:
		num := json.Number(trimmed)
		if i, ierr := num.Int64(); ierr == nil {
			decoded = IntValue(i)
		} else {
			var f float64
			f, err = num.Float64()
			decoded = FloatValue(f)
		}
	}
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	*v = decoded
	return nil
}

// ParseValue coerces a raw JSON reading into the slot of the declared sensor
// type. Numeric-looking input is accepted for every type: 42 is stored as 42
// for int, 42.0 for float, true for boolean and "42" for string. Input that has
// no sensible representation in the slot yields ErrValueIncompatible.
func ParseValue(t SensorType, raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Value{}, ErrValueMissing
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		return Value{}, fmt.Errorf("%w: objects and arrays are not readings", ErrValueIncompatible)
	}
	var in Value
	if err := in.UnmarshalJSON(trimmed); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrValueIncompatible, err)
	}

	switch t {
	case SensorTypeInt:
		return toInt(in)
	case SensorTypeFloat:
		return toFloat(in)
	case SensorTypeBoolean:
		return toBool(in)
	case SensorTypeString:
		return TextValue(in.String()), nil
	}
	return Value{}, fmt.Errorf("%w: unknown sensor type %q", ErrValueIncompatible, t)
}

func toInt(in Value) (Value, error) {
	switch in.kind {
	case KindInt:
		return in, nil
	case KindFloat:
		if v, ok := truncateToInt(in.f); ok {
			return v, nil
		}
	case KindBool:
		if in.b {
			return IntValue(1), nil
		}
		return IntValue(0), nil
	case KindText:
		s := strings.TrimSpace(in.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if v, ok := truncateToInt(f); ok {
				return v, nil
			}
		}
	}
	return Value{}, fmt.Errorf("%w: %q is not an int", ErrValueIncompatible, in.String())
}

// truncateToInt drops the fraction of f. It fails for NaN and for anything
// outside the int64 range, where the conversion is undefined.
func truncateToInt(f float64) (Value, bool) {
	if math.IsNaN(f) || f < -(1<<63) || f >= 1<<63 {
		return Value{}, false
	}
	return IntValue(int64(f)), true
}

func toFloat(in Value) (Value, error) {
	switch in.kind {
	case KindInt:
		return FloatValue(float64(in.i)), nil
	case KindFloat:
		return in, nil
	case KindBool:
		if in.b {
			return FloatValue(1), nil
		}
		return FloatValue(0), nil
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(in.s), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return FloatValue(f), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %q is not a float", ErrValueIncompatible, in.String())
}

func toBool(in Value) (Value, error) {
	switch in.kind {
	case KindBool:
		return in, nil
	case KindInt:
		return BoolValue(in.i != 0), nil
	case KindFloat:
		return BoolValue(in.f != 0), nil
	case KindText:
		if b, err := strconv.ParseBool(strings.TrimSpace(in.s)); err == nil {
			return BoolValue(b), nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(in.s), 64); err == nil {
			return BoolValue(f != 0), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %q is not a boolean", ErrValueIncompatible, in.String())
}

// ValueColumns is the storage layout of a Value: four nullable columns of
// which at most one is set.
type ValueColumns struct {
	Int   sql.NullInt64
	Float sql.NullFloat64
	Bool  sql.NullBool
	Text  sql.NullString
}

// Columns spreads v over its storage slots.
func (v Value) Columns() ValueColumns {
	var c ValueColumns
	switch v.kind {
	case KindInt:
		c.Int = sql.NullInt64{Int64: v.i, Valid: true}
	case KindFloat:
		c.Float = sql.NullFloat64{Float64: v.f, Valid: true}
	case KindBool:
		c.Bool = sql.NullBool{Bool: v.b, Valid: true}
	case KindText:
		c.Text = sql.NullString{String: v.s, Valid: true}
	}
	return c
}

// Value reads back whichever slot is populated. Stored datapoints keep the
// slot they were written with even if the sensor type changes later.
func (c ValueColumns) Value() Value {
	switch {
	case c.Int.Valid:
		return IntValue(c.Int.Int64)
	case c.Float.Valid:
		return FloatValue(c.Float.Float64)
	case c.Bool.Valid:
		return BoolValue(c.Bool.Bool)
	case c.Text.Valid:
		return TextValue(c.Text.String)
	}
	return Value{}
}
