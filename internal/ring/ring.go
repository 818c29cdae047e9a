// Package ring holds the arithmetic behind the daily progress gauge.
package ring

import (
	"math"
	"strings"
)

// Radius of the circular gauge, in the same units the view draws with.
const Radius = 56.0

// Circumference of a gauge of Radius.
var Circumference = 2 * math.Pi * Radius

// Gauge describes a stroke-dash split of the gauge circle.
type Gauge struct {
	Percent       float64
	Radius        float64
	Circumference float64
	Dash          float64
	Gap           float64
}

// Ratio maps value against max to a percentage in [0,100].
// value is clamped into [0,max]; max <= 0 yields 0.
func Ratio(value, max float64) float64 {
	if math.IsNaN(value) || math.IsNaN(max) || max <= 0 || math.IsInf(max, 1) {
		return 0
	}
	clamped := math.Max(0, math.Min(value, max))
	return clamped / max * 100
}

// NewGauge derives the stroke-dash parameters for value/max.
func NewGauge(value, max float64) Gauge {
	pct := Ratio(value, max)
	dash := pct / 100 * Circumference
	return Gauge{
		Percent:       pct,
		Radius:        Radius,
		Circumference: Circumference,
		Dash:          dash,
		Gap:           Circumference - dash,
	}
}

// Remaining is the amount left to the goal, never negative.
func Remaining(goal, total int) int {
	if total >= goal {
		return 0
	}
	return goal - total
}

// Bar renders the ratio as a fixed-width text bar.
func Bar(value, max float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(Ratio(value, max) / 100 * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
