// Package alerting decides which threshold rules a reading trips.
package alerting

import (
	"math"
	"sort"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/models"
)

// DefaultTolerance is the relative tolerance applied to == and != comparisons.
const DefaultTolerance = 1e-9

// Evaluator matches readings against alert rules. It holds no state besides
// its tolerance and is safe for concurrent use.
type Evaluator struct {
	tolerance float64
}

// NewEvaluator returns an evaluator using tolerance for equality comparators.
// A negative tolerance is treated as zero, which means exact equality.
func NewEvaluator(tolerance float64) *Evaluator {
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = 0
	}
	return &Evaluator{tolerance: tolerance}
}

// Evaluate returns every enabled rule of sensor that dp satisfies, ordered by
// rule id. Readings of boolean and string sensors never trip a rule.
func (e *Evaluator) Evaluate(dp models.Datapoint, sensor models.Sensor, rules []models.AlertRule) []models.AlertRule {
	if !sensor.Type.Numeric() {
		return nil
	}
	reading, ok := dp.Value.Float()
	if !ok {
		return nil
	}

	var matched []models.AlertRule
	for _, rule := range rules {
		if !rule.Enabled || rule.SensorID != sensor.ID {
			continue
		}
		if e.Compare(rule.Condition, reading, rule.Value) {
			matched = append(matched, rule)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

// Annotate flags dp for chart display. alertValue is the threshold of the
// lowest-id matching rule.
func (e *Evaluator) Annotate(dp models.Datapoint, sensor models.Sensor, rules []models.AlertRule) models.DatapointView {
	view := models.DatapointView{Datapoint: dp}
	if matched := e.Evaluate(dp, sensor, rules); len(matched) > 0 {
		threshold := matched[0].Value
		view.IsAlert = true
		view.AlertValue = &threshold
	}
	return view
}

// Compare applies c to reading and threshold.
func (e *Evaluator) Compare(c models.Comparator, reading, threshold float64) bool {
	if math.IsNaN(reading) || math.IsNaN(threshold) {
		return c == models.NotEqual
	}
	switch c {
	case models.GreaterThan:
		return reading > threshold
	case models.LessThan:
		return reading < threshold
	case models.GreaterOrEqual:
		return reading >= threshold || e.equal(reading, threshold)
	case models.LessOrEqual:
		return reading <= threshold || e.equal(reading, threshold)
	case models.Equal:
		return e.equal(reading, threshold)
	case models.NotEqual:
		return !e.equal(reading, threshold)
	}
	return false
}

func (e *Evaluator) equal(a, b float64) bool {
	if a == b {
		return true
	}
	if e.tolerance == 0 {
		return false
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= e.tolerance*scale
}
